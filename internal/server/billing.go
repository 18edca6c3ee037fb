package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/providers/pdf"
)

type createOrderRequest struct {
	Periods    int    `json:"periods"`
	CouponCode string `json:"coupon_code"`
}

type applyPaymentRequest struct {
	Amount         int64  `json:"amount"`
	PeriodsCovered int    `json:"periods_covered"`
	PaymentID      string `json:"payment_id"`
	OrderID        string `json:"order_id"`
	Signature      string `json:"signature"`
}

func (s *Server) CreateListingOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.CreateListingOrder(c.Request.Context(), billingdomain.CreateOrderRequest{
		ResourceID: strings.TrimSpace(c.Param("id")),
		Periods:    req.Periods,
		CouponCode: strings.TrimSpace(req.CouponCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyListingPayment(c *gin.Context) {
	var req applyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.ApplyListingPayment(c.Request.Context(), billingdomain.ApplyPaymentRequest{
		ResourceID:        strings.TrimSpace(c.Param("id")),
		Amount:            req.Amount,
		PeriodsCovered:    req.PeriodsCovered,
		ExternalPaymentID: strings.TrimSpace(req.PaymentID),
		ExternalOrderID:   strings.TrimSpace(req.OrderID),
		Signature:         strings.TrimSpace(req.Signature),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetListingObligation(c *gin.Context) {
	resp, err := s.billingSvc.GetListingObligation(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListListingLedger(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.ListListingLedger(c.Request.Context(), billingdomain.ListLedgerRequest{
		ResourceID: strings.TrimSpace(c.Param("id")),
		PageToken:  strings.TrimSpace(query.PageToken),
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetListingReceipt(c *gin.Context) {
	listingID := strings.TrimSpace(c.Param("id"))

	entry, err := s.billingSvc.GetListingLedgerEntry(c.Request.Context(), listingID, strings.TrimSpace(c.Param("entryID")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	listing, err := s.listingSvc.GetByID(c.Request.Context(), listingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.renderReceipt(c, entry, listing.Title, listing.ID.String(), "Platform service charge")
}

func (s *Server) CreateLeaseOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.CreateLeaseOrder(c.Request.Context(), billingdomain.CreateOrderRequest{
		ResourceID: strings.TrimSpace(c.Param("id")),
		Periods:    req.Periods,
		CouponCode: strings.TrimSpace(req.CouponCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyLeasePayment(c *gin.Context) {
	var req applyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.ApplyLeasePayment(c.Request.Context(), billingdomain.ApplyPaymentRequest{
		ResourceID:        strings.TrimSpace(c.Param("id")),
		Amount:            req.Amount,
		PeriodsCovered:    req.PeriodsCovered,
		ExternalPaymentID: strings.TrimSpace(req.PaymentID),
		ExternalOrderID:   strings.TrimSpace(req.OrderID),
		Signature:         strings.TrimSpace(req.Signature),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLeaseObligation(c *gin.Context) {
	resp, err := s.billingSvc.GetLeaseObligation(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLeaseLedger(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.ListLeaseLedger(c.Request.Context(), billingdomain.ListLedgerRequest{
		ResourceID: strings.TrimSpace(c.Param("id")),
		PageToken:  strings.TrimSpace(query.PageToken),
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLeaseReceipt(c *gin.Context) {
	leaseID := strings.TrimSpace(c.Param("id"))

	entry, err := s.billingSvc.GetLeaseLedgerEntry(c.Request.Context(), leaseID, strings.TrimSpace(c.Param("entryID")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	lease, err := s.leaseSvc.GetByID(c.Request.Context(), leaseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.renderReceipt(c, entry, "Lease "+lease.ID.String(), lease.ID.String(), "Rent payment")
}

func (s *Server) RunSweep(c *gin.Context) {
	var query struct {
		BatchSize int `form:"batch_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	listings, err := s.billingSvc.ReconcileListings(c.Request.Context(), query.BatchSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	leases, err := s.billingSvc.ReconcileLeases(c.Request.Context(), query.BatchSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"listings": sweepSummary(listings),
		"leases":   sweepSummary(leases),
	}})
}

func sweepSummary(result billingdomain.ReconcileResult) gin.H {
	return gin.H{
		"scanned":     result.Scanned,
		"transitions": result.Transitions,
	}
}

func (s *Server) renderReceipt(c *gin.Context, entry billingdomain.LedgerEntryView, title, resourceID, description string) {
	data := pdf.ReceiptData{
		ReceiptNumber: entry.ID,
		PaidAt:        entry.AppliedAt.Format("2006-01-02"),
		ResourceTitle: title,
		ResourceID:    resourceID,
		PeriodCovered: fmt.Sprintf("%s to %s", entry.AppliedAt.Format("2006-01-02"), entry.ValidUntil.Format("2006-01-02")),
		PaymentID:     entry.ExternalPaymentID,
		Lines: []pdf.ReceiptLine{
			{
				Description: fmt.Sprintf("%s (%d period(s))", description, entry.PeriodsCovered),
				Amount:      formatAmount(entry.Amount),
			},
		},
		Total: formatAmount(entry.Amount),
	}

	reader, err := s.pdfProvider.GenerateReceipt(c.Request.Context(), data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", entry.ID))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, nil)
}

func formatAmount(amount int64) string {
	return fmt.Sprintf("INR %d", amount)
}
