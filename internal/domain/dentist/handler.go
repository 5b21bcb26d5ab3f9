package dentist

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dentalcrm/crm/internal/platform/auth"
	"github.com/dentalcrm/crm/internal/platform/blobstore"
	"github.com/dentalcrm/crm/internal/platform/result"
)

// LogoField is the multipart field carrying the clinic logo.
const LogoField = "clinicLogo"

type Response struct {
	result.Result
	Dentist     *Dentist `json:"dentist"`
	AccessToken string   `json:"access_token,omitempty"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dentist/profile", h.GetProfile)
	api.POST("/dentist/profile", h.SaveProfile)
}

func (h *Handler) SaveProfile(c echo.Context) error {
	ctx := c.Request().Context()
	who := auth.IdentityFromContext(ctx)

	var in Input
	if err := c.Bind(&in); err != nil {
		return fail(c, h.svc.BindFailed(who, err))
	}
	if isMultipart(c.Request()) {
		logo, err := readLogo(c)
		if err != nil {
			return fail(c, h.svc.UploadFailed(who, err))
		}
		in.Logo = logo
	}

	d, token, err := h.svc.SaveProfile(ctx, who, &in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, Response{Result: result.OK(MsgSaved), Dentist: d, AccessToken: token})
}

func (h *Handler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := h.svc.GetProfile(ctx, auth.IdentityFromContext(ctx))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, Response{Result: result.OK(MsgFound), Dentist: d})
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// readLogo returns the uploaded logo, or nil when the field is absent or
// empty. Oversized files are not read; their size alone fails validation.
func readLogo(c echo.Context) (*Logo, error) {
	fh, err := c.FormFile(LogoField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Size == 0 {
		return nil, nil
	}

	logo := &Logo{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
	}
	if fh.Size > blobstore.MaxLogoSize {
		return logo, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	logo.Data, err = io.ReadAll(io.LimitReader(f, blobstore.MaxLogoSize+1))
	if err != nil {
		return nil, err
	}
	return logo, nil
}

func fail(c echo.Context, err error) error {
	return c.JSON(result.Status(err), Response{Result: result.Failed(err)})
}
