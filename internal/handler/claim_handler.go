package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/export"
	"claimflow/internal/service"
)

// ClaimHandler handles claim processing and run history endpoints.
type ClaimHandler struct {
	claimService   service.ClaimService
	maxUploadBytes int64
}

// NewClaimHandler creates a new ClaimHandler. Uploads above maxUploadMB are
// rejected.
func NewClaimHandler(claimService service.ClaimService, maxUploadMB int64) *ClaimHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &ClaimHandler{claimService: claimService, maxUploadBytes: maxUploadMB * 1024 * 1024}
}

// Upload handles POST /process-claim/upload
// @Summary Process a claim statement image
// @Description Runs one statement image (JPG) through extraction, structuring and policy evaluation.
// @Description The body is the claim record, or a failure envelope when a stage failed.
// @Tags claims
// @Accept multipart/form-data
// @Accept application/octet-stream
// @Produce json
// @Param file formData file false "Statement image"
// @Param filename query string false "File name for raw uploads" default(upload.jpg)
// @Success 200 {object} FailureEnvelope "Claim record or failure envelope"
// @Failure 400 {object} ErrorResponseBody "Missing file or unsupported type"
// @Failure 413 {object} ErrorResponseBody "File too large"
// @Router /process-claim/upload [post]
func (h *ClaimHandler) Upload(c *gin.Context) {
	input, err := h.readUpload(c)
	if err != nil {
		if errors.Is(err, errMissingFile) {
			RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
			return
		}
		HandleError(c, err)
		return
	}

	res, err := h.claimService.ProcessUpload(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("X-Run-ID", res.RunID.String())
	c.JSON(http.StatusOK, res)
}

var errMissingFile = errors.New("missing file")

// readUpload accepts a multipart "file" field or a raw octet-stream body.
func (h *ClaimHandler) readUpload(c *gin.Context) (service.UploadInput, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return service.UploadInput{}, domain.ErrFileTooLarge
			}
			return service.UploadInput{}, errMissingFile
		}
		defer func() { _ = file.Close() }()
		if header.Size > h.maxUploadBytes {
			return service.UploadInput{}, domain.ErrFileTooLarge
		}
		data, err := h.readLimited(file)
		if err != nil {
			return service.UploadInput{}, err
		}
		return service.UploadInput{FileName: header.Filename, Data: data}, nil
	}

	if c.ContentType() != "application/octet-stream" {
		return service.UploadInput{}, errMissingFile
	}
	data, err := h.readLimited(c.Request.Body)
	if err != nil {
		return service.UploadInput{}, err
	}
	if len(data) == 0 {
		return service.UploadInput{}, errMissingFile
	}
	return service.UploadInput{FileName: c.DefaultQuery("filename", "upload.jpg"), Data: data}, nil
}

func (h *ClaimHandler) readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, h.maxUploadBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, domain.ErrFileTooLarge
		}
		return nil, eris.Wrap(err, "handler: read upload")
	}
	if n > h.maxUploadBytes {
		return nil, domain.ErrFileTooLarge
	}
	return buf.Bytes(), nil
}

// ListClaimRuns handles GET /api/v1/claims/:claim_id/runs
// @Summary List runs of a claim
// @Tags runs
// @Produce json
// @Param claim_id path string true "Claim ID"
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.ClaimRun,meta=PagMeta} "Runs, newest first"
// @Failure 503 {object} ErrorResponseBody "Results store not configured"
// @Router /api/v1/claims/{claim_id}/runs [get]
func (h *ClaimHandler) ListClaimRuns(c *gin.Context) {
	offset, limit := pagination(c)

	runs, total, err := h.claimService.ListRuns(c.Request.Context(), c.Param("claim_id"), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, runs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// ListRuns handles GET /api/v1/runs
// @Summary List all runs
// @Tags runs
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.ClaimRun,meta=PagMeta} "Runs, newest first"
// @Router /api/v1/runs [get]
func (h *ClaimHandler) ListRuns(c *gin.Context) {
	offset, limit := pagination(c)

	runs, total, err := h.claimService.ListAllRuns(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, runs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetRun handles GET /api/v1/runs/:id
// @Summary Get a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} Response{data=domain.ClaimRun}
// @Failure 400 {object} ErrorResponseBody "Invalid run ID"
// @Failure 404 {object} ErrorResponseBody "Run not found"
// @Router /api/v1/runs/{id} [get]
func (h *ClaimHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID")
		return
	}

	run, err := h.claimService.GetRun(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, run)
}

// Export handles GET /api/v1/runs/export
// @Summary Export run summaries
// @Tags runs
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv or xlsx" default(csv)
// @Param name query string false "Download file name"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponseBody "Unknown format"
// @Router /api/v1/runs/export [get]
func (h *ClaimHandler) Export(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "xlsx" {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or xlsx")
		return
	}

	runs, err := service.AllRuns(c.Request.Context(), h.claimService, c.Query("claim_id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	filename := export.BuildFilename(c.Query("name"), format)
	if format == "xlsx" {
		h.writeXLSX(c, filename, runs)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)
	_, _ = c.Writer.Write(export.BOM)

	w := export.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		zap.L().Error("claimHandler.Export: write header", zap.Error(err))
		return
	}
	if err := w.WriteRuns(runs); err != nil {
		zap.L().Error("claimHandler.Export: write rows", zap.Error(err))
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		zap.L().Error("claimHandler.Export: flush", zap.Error(err))
	}
}

func (h *ClaimHandler) writeXLSX(c *gin.Context, filename string, runs []domain.ClaimRun) {
	x, err := export.NewXLSXWriter()
	if err != nil {
		HandleError(c, err)
		return
	}
	defer func() { _ = x.Close() }()

	if err := x.WriteHeader(); err != nil {
		HandleError(c, err)
		return
	}
	if err := x.WriteRuns(runs); err != nil {
		HandleError(c, err)
		return
	}

	var buf bytes.Buffer
	if _, err := x.WriteTo(&buf); err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
