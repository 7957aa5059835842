package handler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fasttransfer/relay/internal/domain/entities"
	"github.com/fasttransfer/relay/internal/usecase"
)

// TransferHandler exposes the transfer lifecycle over HTTP
type TransferHandler struct {
	transfers *usecase.TransferUseCase
	archive   *usecase.ArchiveUseCase
	cleanup   *usecase.CleanupUseCase
	apiKey    string
}

// NewTransferHandler creates a new transfer handler. apiKey guards the
// maintenance endpoint only; the public surface is unauthenticated.
func NewTransferHandler(transfers *usecase.TransferUseCase, archive *usecase.ArchiveUseCase, cleanup *usecase.CleanupUseCase, apiKey string) *TransferHandler {
	return &TransferHandler{
		transfers: transfers,
		archive:   archive,
		cleanup:   cleanup,
		apiKey:    apiKey,
	}
}

func (h *TransferHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(corsMiddleware())

	api.POST("/upload", h.upload)
	api.GET("/files/:transferId", h.listFiles)
	api.GET("/download/:transferId/:fileId", h.downloadFile)
	api.GET("/download-zip/:transferId", h.downloadZip)
	api.GET("/status", h.status)

	maintenance := api.Group("")
	maintenance.Use(h.authMiddleware())
	maintenance.POST("/cleanup", h.runCleanup)
}

func (h *TransferHandler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.apiKey == "" || c.GetHeader("X-API-Key") != h.apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *TransferHandler) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No files provided"})
		return
	}

	headers := form.File["files"]
	uploads := make([]usecase.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unreadable file in upload"})
			return
		}
		defer f.Close()
		uploads = append(uploads, usecase.Upload{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Reader:   f,
		})
	}

	meta := usecase.TransferMeta{
		SenderEmail:   c.PostForm("senderEmail"),
		ReceiverEmail: c.PostForm("receiverEmail"),
		Message:       c.PostForm("message"),
	}

	transfer, err := h.transfers.CreateTransfer(c.Request.Context(), uploads, meta)
	if err != nil {
		h.renderError(c, err)
		return
	}

	files, err := h.transfers.GetDownloadableFiles(c.Request.Context(), transfer.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	fileList := make([]gin.H, 0, len(files))
	for _, f := range files {
		fileList = append(fileList, gin.H{
			"id":          f.ID,
			"name":        f.OriginalName,
			"size":        f.Size,
			"type":        f.MimeType,
			"downloadUrl": fmt.Sprintf("/api/download/%s/%s", transfer.ID, f.ID),
		})
	}

	resp := gin.H{
		"success":      true,
		"message":      fmt.Sprintf("%d files uploaded", len(files)),
		"transferId":   transfer.ID,
		"expiresAt":    transfer.ExpiresAt,
		"totalSize":    transfer.TotalSize,
		"files":        fileList,
		"downloadPage": "/download.html?id=" + transfer.ID,
	}
	if len(fileList) == 1 {
		resp["directDownload"] = fileList[0]["downloadUrl"]
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TransferHandler) listFiles(c *gin.Context) {
	transferID := c.Param("transferId")

	files, err := h.transfers.GetDownloadableFiles(c.Request.Context(), transferID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	fileList := make([]gin.H, 0, len(files))
	for _, f := range files {
		fileList = append(fileList, gin.H{
			"id":   f.ID,
			"name": f.OriginalName,
			"size": f.Size,
			"type": f.MimeType,
			"url":  fmt.Sprintf("/api/download/%s/%s", transferID, f.ID),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"transferId": transferID,
		"files":      fileList,
		"count":      len(fileList),
	})
}

func (h *TransferHandler) downloadFile(c *gin.Context) {
	transferID := c.Param("transferId")
	fileID := c.Param("fileId")

	file, stream, err := h.transfers.DownloadFile(c.Request.Context(), transferID, fileID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", file.MimeType)
	c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalName))
	if _, err := io.Copy(c.Writer, stream); err != nil {
		// Headers are gone; nothing to send the client beyond the log
		log.Printf("transfer %s: download of %s aborted: %v", transferID, fileID, err)
	}
}

func (h *TransferHandler) downloadZip(c *gin.Context) {
	transferID := c.Param("transferId")

	// Fail before committing to a zip response if the transfer is
	// unknown or expired
	if _, err := h.transfers.GetDownloadableFiles(c.Request.Context(), transferID); err != nil {
		h.renderError(c, err)
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "fasttransfer-"+transferID+".zip"))
	c.Header("Trailer", "X-Bundle-Missing")

	missing, err := h.archive.Bundle(c.Request.Context(), transferID, c.Writer)
	if err != nil {
		log.Printf("transfer %s: bundle aborted: %v", transferID, err)
		return
	}
	if missing > 0 {
		c.Header("X-Bundle-Missing", strconv.Itoa(missing))
	}
}

func (h *TransferHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *TransferHandler) runCleanup(c *gin.Context) {
	deleted, err := h.cleanup.RunOnce(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *TransferHandler) renderError(c *gin.Context, err error) {
	switch {
	case entities.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, entities.ErrTransferExpired):
		c.JSON(http.StatusGone, gin.H{"success": false, "error": "This transfer has expired"})
	case errors.Is(err, entities.ErrTransferNotFound), errors.Is(err, entities.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Transfer not found"})
	default:
		log.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Something went wrong"})
	}
}
