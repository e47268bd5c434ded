package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/apiario/colmeia.server/src/production/COL.ApiService/implementation/colmeia"
	"gitlab.com/apiario/colmeia.server/src/production/COL.ApiService/middleware"
	logger "gitlab.com/apiario/colmeia.server/src/production/COL.Logger"
	colmodels "gitlab.com/apiario/colmeia.server/src/production/COL.Models"
	api_models "gitlab.com/apiario/colmeia.server/src/production/COL.Models/api"
)

const (
	msgValidation     = "Erro de validação."
	msgDuplicate      = "O identificador informado já existe."
	msgInvalidID      = "O ID fornecido é inválido."
	msgNotFound       = "Colmeia não encontrada."
	msgNotFoundUpdate = "Colmeia não encontrada para atualização."
	msgNotFoundDelete = "Colmeia não encontrada para exclusão."
	msgDeleted        = "Registro da colmeia deletado com sucesso."
	msgInternal       = "Ocorreu um erro interno no servidor."
)

// ColmeiaController handles colmeia CRUD requests
type ColmeiaController struct {
	service *colmeia.ColmeiaService
	logger  *logger.Logger
}

// NewColmeiaController creates a new colmeia controller
func NewColmeiaController(service *colmeia.ColmeiaService, logger *logger.Logger) *ColmeiaController {
	return &ColmeiaController{
		service: service,
		logger:  logger.WithComponent("colmeia_controller"),
	}
}

// RegisterRoutes registers the colmeia routes with Gin
func (c *ColmeiaController) RegisterRoutes(router *gin.Engine) {
	colmeias := router.Group("/colmeias")
	{
		colmeias.POST("", c.CreateColmeia)
		colmeias.GET("", c.ListColmeias)
		colmeias.GET("/:id", c.GetColmeia)
		colmeias.PUT("/:id", c.UpdateColmeia)
		colmeias.DELETE("/:id", c.DeleteColmeia)
	}
}

// CreateColmeia handles POST /colmeias
func (c *ColmeiaController) CreateColmeia(ctx *gin.Context) {
	in, err := bindColmeiaInput(ctx)
	if err != nil {
		c.respondWithError(ctx, err)
		return
	}

	created, err := c.service.Create(ctx.Request.Context(), in)
	if err != nil {
		c.respondWithError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// ListColmeias handles GET /colmeias and always answers with a JSON array
func (c *ColmeiaController) ListColmeias(ctx *gin.Context) {
	colmeias, err := c.service.ListAll(ctx.Request.Context())
	if err != nil {
		c.respondWithError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, colmeias)
}

// GetColmeia handles GET /colmeias/:id
func (c *ColmeiaController) GetColmeia(ctx *gin.Context) {
	found, err := c.service.GetByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.respondWithError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, found)
}

// UpdateColmeia handles PUT /colmeias/:id. Keys missing from the body keep
// their stored values.
func (c *ColmeiaController) UpdateColmeia(ctx *gin.Context) {
	in, err := bindColmeiaInput(ctx)
	if err != nil {
		c.respondWithLookupError(ctx, err, msgNotFoundUpdate)
		return
	}

	updated, err := c.service.Update(ctx.Request.Context(), ctx.Param("id"), in)
	if err != nil {
		c.respondWithLookupError(ctx, err, msgNotFoundUpdate)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// DeleteColmeia handles DELETE /colmeias/:id
func (c *ColmeiaController) DeleteColmeia(ctx *gin.Context) {
	if err := c.service.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		c.respondWithLookupError(ctx, err, msgNotFoundDelete)
		return
	}

	ctx.JSON(http.StatusOK, api_models.MessageResponse{Message: msgDeleted})
}

// bindColmeiaInput treats an empty body as an empty object and turns decode
// failures into cast validation errors.
func bindColmeiaInput(ctx *gin.Context) (colmodels.ColmeiaInput, error) {
	var in colmodels.ColmeiaInput
	if ctx.Request.Body == nil {
		return in, nil
	}

	err := ctx.ShouldBindJSON(&in)
	if err == nil || errors.Is(err, io.EOF) {
		return in, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return in, colmeia.NewCastError(typeErr.Field)
	}
	return in, colmeia.NewCastError("")
}

// respondWithError maps service errors to a status code and response body
func (c *ColmeiaController) respondWithError(ctx *gin.Context, err error) {
	c.respondWithLookupError(ctx, err, msgNotFound)
}

// respondWithLookupError is respondWithError for routes that name the
// operation in their not-found message.
func (c *ColmeiaController) respondWithLookupError(ctx *gin.Context, err error, notFoundMessage string) {
	var validationErr *colmeia.ValidationError
	switch {
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusBadRequest, api_models.ErrorResponse{
			Message: msgValidation,
			Errors:  toFieldErrors(validationErr.Fields),
		})
	case errors.Is(err, colmeia.ErrDuplicateKey):
		ctx.JSON(http.StatusBadRequest, api_models.ErrorResponse{Message: msgDuplicate})
	case errors.Is(err, colmeia.ErrInvalidID):
		ctx.JSON(http.StatusBadRequest, api_models.ErrorResponse{Message: msgInvalidID})
	case errors.Is(err, colmeia.ErrNotFound):
		ctx.JSON(http.StatusNotFound, api_models.ErrorResponse{Message: notFoundMessage})
	default:
		requestID, _ := middleware.GetRequestIDFromGinContext(ctx)
		c.logger.WithRequestID(requestID).ErrorWithError(err, "Colmeia request failed")
		ctx.JSON(http.StatusInternalServerError, api_models.ErrorResponse{Message: msgInternal})
	}
}

func toFieldErrors(fields colmeia.FieldErrors) map[string]api_models.FieldError {
	out := make(map[string]api_models.FieldError, len(fields))
	for path, f := range fields {
		out[path] = api_models.FieldError{
			Message: f.Message,
			Path:    f.Path,
			Kind:    f.Kind,
		}
	}
	return out
}
