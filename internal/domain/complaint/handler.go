package complaint

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentalcrm/crm/internal/platform/auth"
	"github.com/dentalcrm/crm/internal/platform/result"
)

type Response struct {
	result.Result
	Complaint *Complaint `json:"complaint"`
}

type ListResponse struct {
	result.Result
	Complaints []*Complaint `json:"complaints"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/complaints", h.ListComplaints)
	api.POST("/patients/:id/complaints", h.CreateComplaint)
}

func (h *Handler) CreateComplaint(c echo.Context) error {
	ctx := c.Request().Context()
	who := auth.IdentityFromContext(ctx)

	var in Input
	if err := c.Bind(&in); err != nil {
		err = h.svc.BindFailed(who, err)
		return c.JSON(result.Status(err), Response{Result: result.Failed(err)})
	}
	created, err := h.svc.Create(ctx, who, c.Param("id"), &in)
	if err != nil {
		return c.JSON(result.Status(err), Response{Result: result.Failed(err)})
	}
	return c.JSON(http.StatusCreated, Response{Result: result.OK(MsgCreated), Complaint: created})
}

func (h *Handler) ListComplaints(c echo.Context) error {
	ctx := c.Request().Context()
	complaints, err := h.svc.ListForPatient(ctx, auth.IdentityFromContext(ctx), c.Param("id"))
	if err != nil {
		return c.JSON(result.Status(err), ListResponse{Result: result.Failed(err)})
	}
	return c.JSON(http.StatusOK, ListResponse{Result: result.OK(MsgListed), Complaints: complaints})
}
