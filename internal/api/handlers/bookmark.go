package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/internal/utils"
)

type BookmarkHandler struct {
	bookmarkService *services.BookmarkService
}

func NewBookmarkHandler(bookmarkService *services.BookmarkService) *BookmarkHandler {
	return &BookmarkHandler{bookmarkService: bookmarkService}
}

func (h *BookmarkHandler) AddBookmark(c *gin.Context) {
	bookmark, err := h.bookmarkService.Add(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendCreated(c, bookmark)
}

func (h *BookmarkHandler) RemoveBookmark(c *gin.Context) {
	if err := h.bookmarkService.Remove(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	utils.SendMessage(c, "Bookmark removed")
}
