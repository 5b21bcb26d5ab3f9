package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentalcrm/crm/internal/platform/auth"
	"github.com/dentalcrm/crm/internal/platform/result"
	"github.com/dentalcrm/crm/pkg/pagination"
)

type Response struct {
	result.Result
	Patient *Patient `json:"patient"`
}

type ListResponse struct {
	result.Result
	Patients []*Patient `json:"patients"`
	*pagination.Meta
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	ctx := c.Request().Context()
	who := auth.IdentityFromContext(ctx)

	var in Input
	if err := c.Bind(&in); err != nil {
		return fail(c, h.svc.BindFailed(who, err))
	}
	p, err := h.svc.Create(ctx, who, &in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, Response{Result: result.OK(MsgCreated), Patient: p})
}

func (h *Handler) GetPatient(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, auth.IdentityFromContext(ctx), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, Response{Result: result.OK(MsgFound), Patient: p})
}

func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.List(ctx, auth.IdentityFromContext(ctx), c.QueryParam("q"), pg)
	if err != nil {
		return c.JSON(result.Status(err), ListResponse{Result: result.Failed(err), Patients: nil})
	}
	meta := pg.Meta(total)
	return c.JSON(http.StatusOK, ListResponse{Result: result.OK(MsgListed), Patients: patients, Meta: &meta})
}

func fail(c echo.Context, err error) error {
	return c.JSON(result.Status(err), Response{Result: result.Failed(err)})
}
