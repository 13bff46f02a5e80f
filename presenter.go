package main

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"lppm/models"
	"lppm/pkg/workflow"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type statusStyle struct {
	Label string
	Color string
}

// statusStyles is the single lookup every status display goes through.
var statusStyles = map[workflow.Status]statusStyle{
	workflow.Draft:            {"Draf", "gray"},
	workflow.Submitted:        {"Diajukan", "blue"},
	workflow.VerifiedStaff:    {"Diverifikasi Staf", "indigo"},
	workflow.RevisionRequired: {"Perlu Revisi", "orange"},
	workflow.ApprovedChief:    {"Disetujui Ketua", "green"},
	workflow.Rejected:         {"Ditolak", "red"},
	workflow.Paid:             {"Dibayar", "teal"},
}

func styleOf(s string) statusStyle {
	if st, ok := statusStyles[workflow.Status(s)]; ok {
		return st
	}
	return statusStyle{Label: s, Color: "gray"}
}

type documentJSON struct {
	Kind      string    `json:"kind"`
	Link      string    `json:"link"`
	UpdatedAt time.Time `json:"updated_at"`
}

type auditJSON struct {
	Action       string    `json:"action"`
	ActorID      uint      `json:"actor_id"`
	StatusBefore string    `json:"status_before"`
	StatusAfter  string    `json:"status_after"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type submissionJSON struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	OwnerID        uint           `json:"owner_id"`
	Status         string         `json:"status"`
	StatusLabel    string         `json:"status_label"`
	StatusColor    string         `json:"status_color"`
	ApprovedAmount *int64         `json:"approved_amount"`
	PaymentDate    *string        `json:"payment_date"`
	RejectionNote  *string        `json:"rejection_note"`
	RejectedBy     *uint          `json:"rejected_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Documents      []documentJSON `json:"documents,omitempty"`
	AuditTrail     []auditJSON    `json:"audit_trail,omitempty"`
}

func presentSubmission(sub *models.BookSubmission, trail []models.AuditLog) submissionJSON {
	st := styleOf(sub.Status)
	out := submissionJSON{
		ID:             sub.ID,
		Title:          sub.Title,
		OwnerID:        sub.OwnerID,
		Status:         sub.Status,
		StatusLabel:    st.Label,
		StatusColor:    st.Color,
		ApprovedAmount: sub.ApprovedAmount,
		RejectionNote:  sub.RejectionNote,
		RejectedBy:     sub.RejectedBy,
		CreatedAt:      sub.CreatedAt,
		UpdatedAt:      sub.UpdatedAt,
	}
	if sub.PaymentDate != nil {
		d := sub.PaymentDate.Format("2006-01-02")
		out.PaymentDate = &d
	}
	for _, d := range sub.Documents {
		out.Documents = append(out.Documents, documentJSON{Kind: d.Kind, Link: d.Link, UpdatedAt: d.UpdatedAt})
	}
	for _, a := range trail {
		out.AuditTrail = append(out.AuditTrail, auditJSON{
			Action:       a.Action,
			ActorID:      a.ActorID,
			StatusBefore: a.StatusBefore,
			StatusAfter:  a.StatusAfter,
			Note:         a.Note,
			CreatedAt:    a.CreatedAt,
		})
	}
	return out
}

type notificationJSON struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func presentNotifications(rows []models.Notification) []notificationJSON {
	out := make([]notificationJSON, 0, len(rows))
	for _, n := range rows {
		out = append(out, notificationJSON{ID: n.ID, Title: n.Title, Message: n.Message, Type: n.Type, IsRead: n.IsRead, CreatedAt: n.CreatedAt})
	}
	return out
}

const staleMessage = "this item is no longer in the expected state, please refresh"

// writeError maps workflow errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var ve *workflow.ValidationError
	var de *workflow.IncompleteDocumentsError
	switch {
	case errors.As(err, &de):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "supporting documents are incomplete",
			"have":    de.Have,
			"need":    de.Need,
			"missing": de.Missing,
		})
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Field + " " + ve.Message, "field": ve.Field})
	case errors.Is(err, workflow.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not allowed to perform this action"})
	case errors.Is(err, workflow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": staleMessage})
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save your change, please try again"})
	}
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	}
}

// writeBindError reports request binding failures. Validator failures become
// field-level 422 responses; malformed bodies are 400.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":  verrs[0].Field() + " failed " + verrs[0].Tag(),
		"field":  verrs[0].Field(),
		"fields": fields,
	})
}
