package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"platewatch-service/internal/capture"
	"platewatch-service/internal/config"
	"platewatch-service/internal/domain/recognition"
	"platewatch-service/internal/service"
)

const maxUploadBytes = 10 << 20

type Handler struct {
	recognitionService *service.RecognitionService
	controller         *capture.Controller
	config             *config.Config
	log                zerolog.Logger
}

func NewHandler(
	recognitionService *service.RecognitionService,
	controller *capture.Controller,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		recognitionService: recognitionService,
		controller:         controller,
		config:             cfg,
		log:                log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", h.health)

	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/recognitions", h.recognize)
		public.GET("/plates", h.listPlates)
		public.GET("/events", h.listEvents)
	}

	// Stream control owns the camera; protected
	stream := r.Group("/api/v1/stream")
	stream.Use(authMiddleware)
	{
		stream.POST("/start", h.streamStart)
		stream.POST("/pause", h.streamPause)
		stream.POST("/stop", h.streamStop)
		stream.GET("/latest", h.streamLatest)
		stream.GET("/status", h.streamStatus)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) recognize(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("image file is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, errorResponse("image file is too large"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read image file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read image file"))
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse("image file is empty"))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	frame := recognition.Frame{
		Data:     data,
		MIMEType: mimeType,
		Filename: fileHeader.Filename,
	}

	result, verdict, err := h.recognitionService.ProcessFrame(c.Request.Context(), frame, service.SourceUpload, "")
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"result":  result,
		"verdict": verdict,
	}))
}

func (h *Handler) listPlates(c *gin.Context) {
	plateQuery := strings.TrimSpace(c.Query("plate"))
	if plateQuery == "" {
		c.JSON(http.StatusBadRequest, errorResponse("plate parameter is required"))
		return
	}

	plates, err := h.recognitionService.FindPlates(c.Request.Context(), plateQuery)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(plates))
}

func (h *Handler) listEvents(c *gin.Context) {
	var plateQuery *string
	if plate := strings.TrimSpace(c.Query("plate")); plate != "" {
		plateQuery = &plate
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.recognitionService.FindEvents(c.Request.Context(), plateQuery, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) streamStart(c *gin.Context) {
	if !h.requireController(c) {
		return
	}
	if err := h.controller.Start(c.Request.Context()); err != nil {
		if errors.Is(err, capture.ErrInvalidState) {
			c.JSON(http.StatusConflict, errorResponse(err.Error()))
			return
		}
		h.log.Error().Err(err).Msg("failed to start capture")
		c.JSON(http.StatusBadGateway, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse(h.controller.Status()))
}

func (h *Handler) streamPause(c *gin.Context) {
	if !h.requireController(c) {
		return
	}
	if err := h.controller.Pause(); err != nil {
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse(h.controller.Status()))
}

func (h *Handler) streamStop(c *gin.Context) {
	if !h.requireController(c) {
		return
	}
	if err := h.controller.Stop(); err != nil {
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse(h.controller.Status()))
}

func (h *Handler) streamLatest(c *gin.Context) {
	if !h.requireController(c) {
		return
	}
	snap := h.controller.Latest()
	if snap == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, successResponse(snap))
}

func (h *Handler) streamStatus(c *gin.Context) {
	if !h.requireController(c) {
		return
	}
	c.JSON(http.StatusOK, successResponse(h.controller.Status()))
}

func (h *Handler) requireController(c *gin.Context) bool {
	if h.controller == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("capture source is not configured"))
		return false
	}
	return true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrRecognitionFailed):
		c.JSON(http.StatusBadGateway, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
