package controller

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/middleware"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/service"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
)

const multipartMemory = 32 << 20

type AttachmentController struct {
	attachmentService *service.AttachmentService
}

func NewAttachmentController(attachmentService *service.AttachmentService) *AttachmentController {
	return &AttachmentController{
		attachmentService: attachmentService,
	}
}

func formFiles(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	headers := append([]*multipart.FileHeader{}, form.File["files"]...)
	return append(headers, form.File["file"]...)
}

// UploadAttachments godoc
// @Summary      Upload Attachments
// @Description  Upload up to 10 files (20 MB each). The returned attachments are passed to Send Message.
// @Tags         attachment
// @Accept       multipart/form-data
// @Produce      json
// @Param        files formData file true "Files to upload"
// @Success      200  {object}  helper.ResponseSuccess{data=[]model.Attachment}
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      413  {object}  helper.ResponseError
// @Failure      429  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/attachments [post]
func (c *AttachmentController) UploadAttachments(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constant.MaxAttachmentsPerMessage*(constant.MaxAttachmentSize+1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		slog.Warn("Error parsing multipart form", "error", err)
		helper.WriteError(w, helper.NewBadRequestError(""))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := formFiles(r.MultipartForm)
	if len(headers) == 0 {
		helper.WriteError(w, helper.NewBadRequestError("No files uploaded"))
		return
	}
	if len(headers) > constant.MaxAttachmentsPerMessage {
		helper.WriteError(w, helper.NewBadRequestError(fmt.Sprintf("You can attach up to %d files per message", constant.MaxAttachmentsPerMessage)))
		return
	}

	attachments := make([]model.Attachment, 0, len(headers))
	for _, header := range headers {
		att, err := c.uploadOne(r, *user, header)
		if err != nil {
			for _, done := range attachments {
				if rmErr := c.attachmentService.Remove(r.Context(), *user, done); rmErr != nil {
					slog.Warn("Failed to roll back upload", "error", rmErr, "path", done.StoragePath)
				}
			}
			helper.WriteError(w, err)
			return
		}
		attachments = append(attachments, *att)
	}

	helper.WriteSuccess(w, attachments)
}

func (c *AttachmentController) uploadOne(r *http.Request, user model.UserDTO, header *multipart.FileHeader) (*model.Attachment, error) {
	file, err := header.Open()
	if err != nil {
		slog.Warn("Error retrieving file", "error", err)
		return nil, helper.NewBadRequestError("")
	}
	defer file.Close()

	return c.attachmentService.Upload(r.Context(), user, model.UploadFile{
		Name:     header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Reader:   file,
	})
}

// RemoveAttachment godoc
// @Summary      Remove Attachment
// @Description  Delete an uploaded file that has not been sent in a message yet.
// @Tags         attachment
// @Accept       json
// @Produce      json
// @Param        request body model.RemoveAttachmentRequest true "Remove Attachment Request"
// @Success      200  {object}  helper.ResponseSuccess
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      403  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/attachments [delete]
func (c *AttachmentController) RemoveAttachment(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	var req model.RemoveAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid request body", "error", err)
		helper.WriteError(w, helper.NewBadRequestError(""))
		return
	}

	if err := c.attachmentService.RemoveByPath(r.Context(), *user, req); err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, nil)
}
