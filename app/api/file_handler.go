package api

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docrag/ingest"
	"docrag/store"
	"docrag/types"
)

type DocumentHandler struct {
	store  store.Storer
	ingest *ingest.Service
	cfg    types.Config
}

func NewDocumentHandler(s store.Storer, ing *ingest.Service, cfg types.Config) *DocumentHandler {
	return &DocumentHandler{
		store:  s,
		ingest: ing,
		cfg:    cfg,
	}
}

func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	if err := h.ingest.ValidateUpload(fileHeader.Filename, fileHeader.Size); err != nil {
		return NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	path := filepath.Join(h.cfg.UploadDir, ingest.UniqueFilename(fileHeader.Filename))
	if err := c.SaveFile(fileHeader, path); err != nil {
		return err
	}

	doc := &types.Document{
		Filename:    fileHeader.Filename,
		FilePath:    path,
		ContentType: fileHeader.Header.Get("Content-Type"),
		FileSize:    fileHeader.Size,
		Status:      types.StatusUploaded,
	}
	if err := h.store.SaveDocument(c.UserContext(), doc); err != nil {
		// No document row points at the file, don't leave it behind.
		os.Remove(path)
		return err
	}

	if err := h.ingest.ProcessDocument(c.UserContext(), doc); err != nil {
		return NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	docs, err := h.store.ListDocuments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(docs)
}

func (h *DocumentHandler) HandleGet(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	doc, err := h.store.GetDocumentByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound(id, "document")
		}
		return err
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) HandleChunks(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if _, err := h.store.GetDocumentByID(c.UserContext(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound(id, "document")
		}
		return err
	}

	chunks, err := h.store.ChunksByDocumentID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(chunks)
}

func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.ingest.DeleteDocument(c.UserContext(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound(id, "document")
		}
		return err
	}
	return c.JSON(fiber.Map{"deleted": id})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID()
	}
	return id, nil
}
