package workflow

import (
	"fmt"

	"lppm/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Dedup key prefixes. A key is "<prefix>_<submission id>".
const (
	PrefixSubmission     = "SUBMISSION"
	PrefixRevision       = "REVISION"
	PrefixVerified       = "VERIFIED"
	PrefixPaymentChief   = "PAYMENT_CHIEF"
	PrefixReject         = "REJECT"
	PrefixPaymentSuccess = "PAYMENT_SUCCESS"
)

// Notification categories.
const (
	CategorySubmission   = "submission"
	CategoryRevision     = "revision"
	CategoryVerification = "verification"
	CategoryPayout       = "payout"
	CategoryRejection    = "rejection"
	CategoryPayment      = "payment"
	CategorySystem       = "system"
)

// DedupKey builds the deterministic key for a submission event.
func DedupKey(prefix, submissionID string) string {
	return prefix + "_" + submissionID
}

var idr = message.NewPrinter(language.Indonesian)

// Rupiah formats n with Indonesian thousand separators ("5.000.000").
func Rupiah(n int64) string {
	return idr.Sprintf("%d", n)
}

func notice(to uint, prefix, category string, sub *models.BookSubmission, title, msg string) models.Notification {
	key := DedupKey(prefix, sub.ID)
	return models.Notification{
		UserID:   to,
		Title:    title,
		Message:  msg,
		Type:     category,
		DedupKey: &key,
	}
}

// SubmittedNotice tells reviewing staff about a fresh submission.
func SubmittedNotice(to uint, sub *models.BookSubmission) models.Notification {
	return notice(to, PrefixSubmission, CategorySubmission, sub,
		"Pengajuan Insentif Buku Baru",
		fmt.Sprintf("Pengajuan insentif buku \"%s\" menunggu verifikasi Anda.", sub.Title))
}

// RevisionNotice tells reviewing staff a rejected submission came back.
func RevisionNotice(to uint, sub *models.BookSubmission) models.Notification {
	return notice(to, PrefixRevision, CategoryRevision, sub,
		"Revisi Pengajuan Masuk",
		fmt.Sprintf("Pengajuan insentif buku \"%s\" telah direvisi dan diajukan ulang.", sub.Title))
}

// VerifiedNotice tells the approving authority a submission awaits approval.
func VerifiedNotice(to uint, sub *models.BookSubmission) models.Notification {
	return notice(to, PrefixVerified, CategoryVerification, sub,
		"Pengajuan Menunggu Persetujuan",
		fmt.Sprintf("Pengajuan insentif buku \"%s\" telah diverifikasi staf dan menunggu persetujuan Ketua.", sub.Title))
}

// PayoutDueNotice tells finance an approved amount awaits disbursement.
func PayoutDueNotice(to uint, sub *models.BookSubmission) models.Notification {
	return notice(to, PrefixPaymentChief, CategoryPayout, sub,
		"Pencairan Dana Menunggu",
		fmt.Sprintf("Pengajuan insentif buku \"%s\" disetujui sebesar Rp %s. Silakan proses pencairan dana.", sub.Title, Rupiah(amountOf(sub))))
}

// RejectedNotice tells the owner about a rejection. A top-tier rejector
// rejects outright; anyone else asks for a revision, quoting the note.
func RejectedNotice(to uint, sub *models.BookSubmission, topTier bool) models.Notification {
	note := ""
	if sub.RejectionNote != nil {
		note = *sub.RejectionNote
	}
	if topTier {
		return notice(to, PrefixReject, CategoryRejection, sub,
			"Pengajuan Ditolak",
			fmt.Sprintf("Pengajuan insentif buku \"%s\" ditolak oleh Ketua LPPM. Catatan: %s", sub.Title, note))
	}
	return notice(to, PrefixReject, CategoryRejection, sub,
		"Revisi Diperlukan",
		fmt.Sprintf("Pengajuan insentif buku \"%s\" perlu direvisi: \"%s\"", sub.Title, note))
}

// PaidNotice tells the owner the incentive was disbursed.
func PaidNotice(to uint, sub *models.BookSubmission) models.Notification {
	date := ""
	if sub.PaymentDate != nil {
		date = sub.PaymentDate.Format("02-01-2006")
	}
	return notice(to, PrefixPaymentSuccess, CategoryPayment, sub,
		"Dana Insentif Buku Cair",
		fmt.Sprintf("Dana insentif buku \"%s\" sebesar Rp %s telah dicairkan pada %s.", sub.Title, Rupiah(amountOf(sub)), date))
}

func amountOf(sub *models.BookSubmission) int64 {
	if sub.ApprovedAmount == nil {
		return 0
	}
	return *sub.ApprovedAmount
}
