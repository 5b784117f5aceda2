package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// WalletResponse is the session snapshot plus display derivations.
type WalletResponse struct {
	Status       string `json:"status"`
	Address      string `json:"address,omitempty"`
	ShortAddress string `json:"short_address,omitempty"`
	Balance      string `json:"balance"`
	BalanceEther string `json:"balance_ether"`
	NetworkID    string `json:"network_id,omitempty"`
	NetworkName  string `json:"network_name,omitempty"`
	Symbol       string `json:"symbol,omitempty"`
	ENSName      string `json:"ens_name,omitempty"`
	ENSAvatar    string `json:"ens_avatar,omitempty"`
}

// CourseResponse folds per-viewer purchase state into the catalog record.
type CourseResponse struct {
	CourseID    uint64 `json:"courseId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Price       string `json:"price"`
	PriceEther  string `json:"price_ether"`
	CreatedAt   int64  `json:"createdAt"`
	IsPurchased bool   `json:"is_purchased"`
	IsOwn       bool   `json:"is_own"`
}

type PurchaseResponse struct {
	CourseID        uint64 `json:"courseId"`
	TransactionHash string `json:"transactionHash"`
	GasUsed         uint64 `json:"gasUsed"`
}
