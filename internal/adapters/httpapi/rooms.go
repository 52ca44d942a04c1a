package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/visign/signaling/internal/core"
	"github.com/visign/signaling/internal/domain"
	"github.com/visign/signaling/internal/metrics"
)

func listRoomsHandler(coord core.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms, participants := metrics.Current()
		c.JSON(http.StatusOK, gin.H{
			"rooms":             coord.ListRooms(),
			"room_count":        rooms,
			"participant_count": participants,
		})
	}
}

func roomStateHandler(coord core.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok := coord.RoomState(domain.CallID(c.Param("callID")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func lockRoomHandler(coord core.Coordinator, locked bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !coord.SetLocked(domain.CallID(c.Param("callID")), locked) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"locked": locked})
	}
}
