package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"lppm/models"
	"lppm/pkg/notify"
	"lppm/pkg/roles"
	"lppm/pkg/workflow"

	"github.com/gin-gonic/gin"
)

func setupRoutes(r *gin.Engine) {
	r.GET("/health", healthHandler)
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware(), rolesMiddleware())
	authGroup.GET("/me", meHandler)

	authGroup.POST("/submissions", createSubmissionHandler)
	authGroup.GET("/submissions", listSubmissionsHandler)
	authGroup.GET("/submissions/:id", getSubmissionHandler)
	authGroup.PUT("/submissions/:id/documents", setDocumentHandler)
	authGroup.POST("/submissions/:id/submit", submitHandler)
	authGroup.POST("/submissions/:id/resubmit", resubmitHandler)
	authGroup.POST("/submissions/:id/verify", verifyHandler)
	authGroup.POST("/submissions/:id/approve", approveHandler)
	authGroup.POST("/submissions/:id/reject", rejectHandler)
	authGroup.POST("/submissions/:id/disburse", disburseHandler)

	// The inbox resolves roles while materializing and must load even when
	// that lookup fails, so it skips rolesMiddleware.
	inboxGroup := r.Group("/notifications")
	inboxGroup.Use(jwtAuthMiddleware())
	inboxGroup.GET("", listNotificationsHandler)
	inboxGroup.GET("/unread-count", unreadCountHandler)
	inboxGroup.POST("/read-all", markAllReadHandler)
	inboxGroup.POST("/:id/read", markReadHandler)
}

func healthHandler(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "time": time.Now().Format(time.RFC3339)})
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	user, err := RegisterUser(req.Username, req.Password, req.Name)
	if err == errUserExists {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully", "id": user.ID})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token, exp, err := issueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": token, "expires_at": exp.Format(time.RFC3339)})
}

func meHandler(c *gin.Context) {
	var user models.User
	if err := db.WithContext(c.Request.Context()).Preload("Profile").First(&user, currentUser(c)).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	resp := gin.H{"id": user.ID, "username": user.Username, "roles": currentRoles(c).Strings()}
	if user.Profile != nil {
		resp["profile_missing"] = user.Profile.MissingFields()
	}
	c.JSON(http.StatusOK, resp)
}

// reviewer reports whether the caller may see every submission.
func reviewer(c *gin.Context) bool {
	return currentRoles(c).HasAny(roles.Staff, roles.Ketua, roles.Keuangan)
}

// paging reads page and per_page (default 20, at most 100).
func paging(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.Query("per_page"))
	if perPage < 1 {
		perPage = notify.DefaultLimit
	}
	if perPage > notify.MaxLimit {
		perPage = notify.MaxLimit
	}
	return page, perPage
}

func createSubmissionHandler(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required,max=512"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	sub, err := submissions.Create(c.Request.Context(), currentUser(c), req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentSubmission(sub, nil))
}

// listSubmissionsHandler lists the caller's submissions. Reviewing roles see
// every owner's unless mine=1 is given.
func listSubmissionsHandler(c *gin.Context) {
	page, perPage := paging(c)
	q := workflow.ListQuery{
		Status: workflow.Status(strings.ToUpper(c.Query("status"))),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if !reviewer(c) || c.Query("mine") == "1" {
		q.OwnerID = currentUser(c)
	}
	items, total, err := submissions.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]submissionJSON, 0, len(items))
	for i := range items {
		out = append(out, presentSubmission(&items[i], nil))
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "total": total, "page": page, "per_page": perPage})
}

func getSubmissionHandler(c *gin.Context) {
	ctx := c.Request.Context()
	sub, err := submissions.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if sub.OwnerID != currentUser(c) && !reviewer(c) {
		writeError(c, workflow.ErrUnauthorized)
		return
	}
	trail, err := submissions.AuditTrail(ctx, sub.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentSubmission(sub, trail))
}

func setDocumentHandler(c *gin.Context) {
	var req struct {
		Kind string `json:"kind" binding:"required"`
		Link string `json:"link" binding:"omitempty,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	doc, err := submissions.SetDocument(c.Request.Context(), c.Param("id"), currentUser(c), req.Kind, req.Link)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentJSON{Kind: doc.Kind, Link: doc.Link, UpdatedAt: doc.UpdatedAt})
}

func respondTransition(c *gin.Context, sub *models.BookSubmission, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentSubmission(sub, nil))
}

func submitHandler(c *gin.Context) {
	sub, err := engine.Submit(c.Request.Context(), c.Param("id"), currentUser(c))
	respondTransition(c, sub, err)
}

func resubmitHandler(c *gin.Context) {
	sub, err := engine.Resubmit(c.Request.Context(), c.Param("id"), currentUser(c))
	respondTransition(c, sub, err)
}

func verifyHandler(c *gin.Context) {
	sub, err := engine.Verify(c.Request.Context(), c.Param("id"), currentUser(c))
	respondTransition(c, sub, err)
}

func approveHandler(c *gin.Context) {
	var req struct {
		Amount *int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	sub, err := engine.Approve(c.Request.Context(), c.Param("id"), currentUser(c), *req.Amount)
	respondTransition(c, sub, err)
}

func rejectHandler(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	sub, err := engine.Reject(c.Request.Context(), c.Param("id"), currentUser(c), req.Note)
	respondTransition(c, sub, err)
}

func disburseHandler(c *gin.Context) {
	var req struct {
		PaymentDate string `json:"payment_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	sub, err := engine.Disburse(c.Request.Context(), c.Param("id"), currentUser(c), req.PaymentDate)
	respondTransition(c, sub, err)
}

// listNotificationsHandler serves the inbox. It always answers 200; failures
// behind it yield an empty list.
func listNotificationsHandler(c *gin.Context) {
	page, perPage := paging(c)
	f := notify.Filter{
		Query:     c.Query("q"),
		Category:  c.Query("type"),
		Ascending: strings.EqualFold(c.Query("sort"), "asc"),
		Limit:     perPage,
		Offset:    (page - 1) * perPage,
	}
	switch c.Query("read") {
	case "true", "1":
		read := true
		f.Read = &read
	case "false", "0":
		unread := false
		f.Read = &unread
	}
	p := inbox.View(c.Request.Context(), currentUser(c), f)
	c.JSON(http.StatusOK, gin.H{
		"items":    presentNotifications(p.Items),
		"total":    p.Total,
		"unread":   p.Unread,
		"page":     page,
		"per_page": perPage,
	})
}

func unreadCountHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"unread": inbox.UnreadCount(c.Request.Context(), currentUser(c))})
}

func markReadHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	if err := inbox.Store().MarkRead(c.Request.Context(), uint(id), currentUser(c)); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update notification, please try again"})
		return
	}
	c.Status(http.StatusNoContent)
}

func markAllReadHandler(c *gin.Context) {
	n, err := inbox.Store().MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update notifications, please try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
