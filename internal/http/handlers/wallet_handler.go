package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/course-marketplace/storefront/internal/chains"
	"github.com/course-marketplace/storefront/internal/format"
	"github.com/course-marketplace/storefront/internal/http/dto"
	"github.com/course-marketplace/storefront/internal/wallet"
)

type WalletHandler struct {
	session *wallet.Session
	log     *zap.Logger
}

func NewWalletHandler(session *wallet.Session, log *zap.Logger) *WalletHandler {
	return &WalletHandler{session: session, log: log}
}

func walletResponse(st wallet.State) dto.WalletResponse {
	resp := dto.WalletResponse{
		Status:       string(st.Status),
		Address:      st.Address,
		Balance:      st.Balance,
		BalanceEther: format.FormatEther(st.Balance),
		NetworkID:    st.NetworkID,
		ENSName:      st.ENSName,
		ENSAvatar:    st.ENSAvatar,
	}
	if st.Address != "" {
		resp.ShortAddress = format.ShortAddress(st.Address)
	}
	if st.NetworkID != "" {
		resp.NetworkName = chains.NameOf(st.NetworkID)
		resp.Symbol = chains.SymbolOf(st.NetworkID)
	}
	return resp
}

// Connect requests wallet access.
// POST /wallet/connect
func (h *WalletHandler) Connect(c *fiber.Ctx) error {
	st, err := h.session.Connect(c.Context())
	if err != nil {
		status := fiber.StatusBadGateway
		switch {
		case errors.Is(err, wallet.ErrProviderUnavailable):
			status = fiber.StatusServiceUnavailable
		case errors.Is(err, wallet.ErrUserRejected):
			status = fiber.StatusBadRequest
		}
		h.log.Debug("wallet connect failed", zap.Error(err))
		return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: walletResponse(st)})
}

// Disconnect resets the local session.
// DELETE /wallet
func (h *WalletHandler) Disconnect(c *fiber.Ctx) error {
	st := h.session.Disconnect()
	return c.JSON(dto.SuccessResponse{OK: true, Data: walletResponse(st)})
}

// GetWallet returns the current snapshot.
// GET /wallet
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: walletResponse(h.session.State())})
}

// SwitchNetwork switches the active chain.
// POST /wallet/network
func (h *WalletHandler) SwitchNetwork(c *fiber.Ctx) error {
	var req dto.SwitchNetworkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.ChainID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "chainId is required"})
	}

	if err := h.session.SwitchNetwork(c.Context(), req.ChainID); err != nil {
		status := fiber.StatusBadGateway
		if errors.Is(err, wallet.ErrUnsupportedNetwork) {
			status = fiber.StatusBadRequest
		}
		h.log.Debug("network switch failed", zap.String("chain_id", req.ChainID), zap.Error(err))
		return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: walletResponse(h.session.State())})
}

// Refresh re-reads balance/network/ENS.
// POST /wallet/refresh
func (h *WalletHandler) Refresh(c *fiber.Ctx) error {
	if err := h.session.Refresh(c.Context()); err != nil {
		h.log.Debug("wallet refresh failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: walletResponse(h.session.State())})
}
