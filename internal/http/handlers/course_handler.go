package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/course-marketplace/storefront/internal/catalog"
	"github.com/course-marketplace/storefront/internal/contract"
	"github.com/course-marketplace/storefront/internal/events"
	"github.com/course-marketplace/storefront/internal/format"
	"github.com/course-marketplace/storefront/internal/http/dto"
	"github.com/course-marketplace/storefront/internal/models"
	"github.com/course-marketplace/storefront/internal/wallet"
)

type CourseHandler struct {
	catalog  *catalog.Client
	contract *contract.Session
	wallet   *wallet.Session
	bus      *events.Bus
	log      *zap.Logger
}

func NewCourseHandler(cat *catalog.Client, cs *contract.Session, ws *wallet.Session, bus *events.Bus, log *zap.Logger) *CourseHandler {
	return &CourseHandler{catalog: cat, contract: cs, wallet: ws, bus: bus, log: log}
}

func (h *CourseHandler) courseResponse(course models.Course, viewer string, purchased map[uint64]bool) dto.CourseResponse {
	return dto.CourseResponse{
		CourseID:    course.CourseID,
		Title:       course.Title,
		Description: course.Description,
		Author:      course.Author,
		Price:       course.Price,
		PriceEther:  format.FormatEther(course.Price),
		CreatedAt:   course.CreatedAt,
		IsPurchased: purchased[course.CourseID],
		IsOwn:       course.IsAuthoredBy(viewer),
	}
}

// ListCourses returns the catalog, folding in per-viewer purchase flags when
// a wallet is connected. Missing purchase history never blocks the listing.
// GET /courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	courses, err := h.catalog.ListCourses(c.Context())
	if err != nil {
		h.log.Error("course listing failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	st := h.wallet.State()
	purchased := make(map[uint64]bool)
	if st.IsConnected() {
		for _, id := range h.contract.GetUserPurchasedCourses(c.Context(), st.Address) {
			purchased[id] = true
		}
	}

	resp := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		resp = append(resp, h.courseResponse(course, st.Address, purchased))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: resp})
}

// GetCourse returns one catalog record.
// GET /courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid course id"})
	}

	course, err := h.catalog.GetCourse(c.Context(), uint64(courseID))
	if err != nil {
		status := fiber.StatusBadGateway
		var catErr *catalog.Error
		if errors.As(err, &catErr) && catErr.Status == fiber.StatusNotFound {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	st := h.wallet.State()
	purchased := make(map[uint64]bool)
	if st.IsConnected() {
		if has, err := h.contract.HasUserPurchasedCourse(c.Context(), course.CourseID, st.Address); err == nil {
			purchased[course.CourseID] = has
		}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.courseResponse(*course, st.Address, purchased)})
}

// Purchase buys a course on-chain, records the purchase in the catalog and
// refreshes the wallet balance. Exactly one terminal response per invocation.
// POST /courses/:id/purchase
func (h *CourseHandler) Purchase(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid course id"})
	}
	id := uint64(courseID)

	st := h.wallet.State()
	if !st.IsConnected() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "wallet not connected"})
	}

	course, err := h.catalog.GetCourse(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	if course.IsAuthoredBy(st.Address) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "cannot purchase your own course"})
	}

	rcpt, err := h.contract.PurchaseCourse(c.Context(), id, course.Price)
	if err != nil {
		h.publishPurchaseFailed(id, err)
		return c.Status(purchaseErrorStatus(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	// The transaction is mined; a catalog recording failure must not turn
	// the confirmed purchase into a user-facing error.
	record := models.Purchase{
		CourseID:        id,
		Buyer:           st.Address,
		Price:           course.Price,
		TransactionHash: rcpt.TransactionHash,
		PurchasedAt:     time.Now().Unix(),
	}
	if err := h.catalog.RecordPurchase(c.Context(), record); err != nil {
		h.log.Warn("purchase recorded on-chain but not in catalog",
			zap.Uint64("course_id", id),
			zap.String("tx", rcpt.TransactionHash),
			zap.Error(err),
		)
	}

	if err := h.wallet.Refresh(c.Context()); err != nil {
		h.log.Warn("post-purchase refresh failed", zap.Error(err))
	}

	h.bus.Publish(events.Event{
		Type: events.EventPurchaseConfirmed,
		Payload: map[string]any{
			"courseId":        id,
			"transactionHash": rcpt.TransactionHash,
		},
	})
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PurchaseResponse{
		CourseID:        id,
		TransactionHash: rcpt.TransactionHash,
		GasUsed:         rcpt.GasUsed,
	}})
}

func (h *CourseHandler) publishPurchaseFailed(courseID uint64, err error) {
	h.bus.Publish(events.Event{
		Type: events.EventPurchaseFailed,
		Payload: map[string]any{
			"courseId": courseID,
			"error":    err.Error(),
		},
	})
}

func purchaseErrorStatus(err error) int {
	var revert *contract.RevertError
	switch {
	case errors.Is(err, contract.ErrAlreadyInFlight):
		return fiber.StatusConflict
	case errors.Is(err, contract.ErrTransactionRejected):
		return fiber.StatusBadRequest
	case errors.As(err, &revert):
		return fiber.StatusBadRequest
	case errors.Is(err, contract.ErrBindingFailed), errors.Is(err, wallet.ErrProviderUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadGateway
	}
}

// PurchasedCourses lists the viewer's purchased courses from the catalog.
// Degrades to an empty list on catalog failure; purchase history being
// unavailable must never block the page.
// GET /courses/purchased
func (h *CourseHandler) PurchasedCourses(c *fiber.Ctx) error {
	st := h.wallet.State()
	if !st.IsConnected() {
		return c.JSON(dto.SuccessResponse{OK: true, Data: []dto.CourseResponse{}})
	}

	courses, err := h.catalog.ListPurchasedCourses(c.Context(), st.Address)
	if err != nil {
		h.log.Warn("purchased-course listing failed", zap.String("address", st.Address), zap.Error(err))
		courses = nil
	}

	resp := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		resp = append(resp, dto.CourseResponse{
			CourseID:    course.CourseID,
			Title:       course.Title,
			Description: course.Description,
			Author:      course.Author,
			Price:       course.Price,
			PriceEther:  format.FormatEther(course.Price),
			CreatedAt:   course.CreatedAt,
			IsPurchased: true,
			IsOwn:       course.IsAuthoredBy(st.Address),
		})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: resp})
}

// Sync asks the catalog to re-sync from the chain.
// POST /courses/sync
func (h *CourseHandler) Sync(c *fiber.Ctx) error {
	if err := h.catalog.SyncCourses(c.Context()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
