package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sparkd-app/dategame/internal/game"
)

// Routes mounts the quiz REST endpoints and the websocket upgrade path.
// The bearer token doubles as the user id; the gateway has no account
// store of its own.
func (s *Server) Routes(r *gin.Engine) {
	r.GET("/ws", gin.WrapF(s.HandleWS))
	r.GET("/user/quiz-games", s.getQuestions)
	r.POST("/user/quiz-result", s.postResult)
	r.GET("/user/quiz-result/:sessionId", s.getResult)
}

func bearerUser(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func (s *Server) getQuestions(c *gin.Context) {
	stage, err := strconv.Atoi(c.DefaultQuery("stage", "1"))
	if err != nil || stage < 1 || stage > game.MaxStage {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "invalid stage"})
		return
	}
	qs := Questions(stage)
	if qs == nil {
		qs = []game.Question{}
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "questions": qs})
}

func (s *Server) postResult(c *gin.Context) {
	userID := bearerUser(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "missing token"})
		return
	}
	var sub game.ResultSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": err.Error()})
		return
	}
	if sub.QuizSessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "quizSessionId is required"})
		return
	}
	res, complete := s.mgr.SubmitResult(sub, userID)
	s.logger.Info().
		Str("gameSessionId", sub.QuizSessionID).
		Str("userId", userID).
		Bool("complete", complete).
		Msg("result submitted")
	if complete && s.onResult != nil {
		s.onResult(res)
	}
	c.JSON(http.StatusCreated, gin.H{"status": true})
}

func (s *Server) getResult(c *gin.Context) {
	sessionID := c.Param("sessionId")
	res, ok := s.mgr.Result(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "results not found"})
		return
	}
	rows := make([]gin.H, 0, len(res.ByUser))
	for _, r := range res.ByUser {
		rows = append(rows, gin.H{
			"user":    gin.H{"_id": r.UserID, "name": r.UserID},
			"answers": r.Answers,
			"score":   r.Score,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        true,
		"results":       rows,
		"compatibility": res.Compat,
		"shared":        res.Shared,
	})
}
