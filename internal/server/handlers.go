package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"PoolLedger/internal/cap"
	"PoolLedger/internal/domain"
)

type rangeReq struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

func (r rangeReq) times() (time.Time, time.Time) {
	var from, to time.Time
	if r.From != nil {
		from = *r.From
	}
	if r.To != nil {
		to = *r.To
	}
	return from, to
}

type windowResp struct {
	ID      int64     `json:"id"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

func toWindowResp(w domain.TimeWindow) windowResp {
	return windowResp{ID: w.ID, StartAt: w.StartAt, EndAt: w.EndAt}
}

type capCategoryReq struct {
	ManualThreshold int64 `json:"manualThreshold"`
	AutoCount       int   `json:"autoCount"`
}

type capRuleReq struct {
	Mode         string                    `json:"mode"`
	ConvertBoxed bool                      `json:"convertBoxed"`
	Categories   map[string]capCategoryReq `json:"categories"`
	From         *time.Time                `json:"from"`
	To           *time.Time                `json:"to"`
}

func (r capRuleReq) toInput() (cap.PreviewInput, error) {
	mode := domain.CapMode(r.Mode)
	if mode != domain.CapModeManual && mode != domain.CapModeAuto {
		return cap.PreviewInput{}, fmt.Errorf("%w: unknown cap mode %q", domain.ErrInvalidInput, r.Mode)
	}

	in := cap.PreviewInput{
		Mode:         mode,
		ConvertBoxed: r.ConvertBoxed,
		Categories:   make(map[domain.Category]domain.CapCategoryParams, len(r.Categories)),
	}
	for name, c := range r.Categories {
		category, err := domain.ParseCategory(name)
		if err != nil {
			return cap.PreviewInput{}, err
		}
		in.Categories[category] = domain.CapCategoryParams{
			ManualThreshold: c.ManualThreshold,
			AutoCount:       c.AutoCount,
		}
	}
	if r.From != nil {
		in.From = *r.From
	}
	if r.To != nil {
		in.To = *r.To
	}
	return in, nil
}

func (s *Server) handleCapPreview(c *fiber.Ctx) error {
	var req capRuleReq
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err))
	}
	in, err := req.toInput()
	if err != nil {
		return s.fail(c, err)
	}
	preview, err := s.deps.Cap.Preview(c.Context(), in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"categories": preview})
}

func (s *Server) handleCapSave(c *fiber.Ctx) error {
	var req capRuleReq
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err))
	}
	in, err := req.toInput()
	if err != nil {
		return s.fail(c, err)
	}
	rule, err := s.deps.Cap.Save(c.Context(), in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(capRuleResp(rule))
}

func (s *Server) handleCapCurrent(c *fiber.Ctx) error {
	rule, err := s.deps.Cap.Current(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(capRuleResp(rule))
}

func capRuleResp(rule domain.CapRule) fiber.Map {
	categories := make(fiber.Map, len(domain.Categories))
	for _, cat := range domain.Categories {
		p := rule.Params(cat)
		categories[string(cat)] = fiber.Map{
			"manualThreshold": p.ManualThreshold,
			"autoCount":       p.AutoCount,
			"autoThreshold":   p.AutoThreshold,
			"effectiveAt":     p.EffectiveAt,
		}
	}
	return fiber.Map{
		"mode":         rule.Mode,
		"convertBoxed": rule.ConvertBoxed,
		"updatedAt":    rule.UpdatedAt,
		"categories":   categories,
	}
}

type recalcReq struct {
	Category string     `json:"category"`
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
	K        int        `json:"k"`
}

func (s *Server) handleCapRecalc(c *fiber.Ctx) error {
	var req recalcReq
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err))
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		return s.fail(c, err)
	}
	from, to := rangeReq{From: req.From, To: req.To}.times()
	res, err := s.deps.Cap.Recalc(c.Context(), category, from, to, req.K)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleCapRecalcAll(c *fiber.Ctx) error {
	var req recalcReq
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err))
	}
	from, to := rangeReq{From: req.From, To: req.To}.times()
	results, err := s.deps.Cap.RecalcAll(c.Context(), from, to, req.K)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"results": results})
}

func (s *Server) handleSettle(c *fiber.Ctx) error {
	var req rangeReq
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err))
	}
	from, to := req.times()
	res, err := s.deps.Settle.Settle(c.Context(), from, to)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"batchId":       res.Batch.ID,
		"createdCount":  res.CreatedCount,
		"alreadyExists": res.AlreadyExists,
		"window":        toWindowResp(res.Window),
		"from":          res.From,
		"to":            res.To,
	})
}

func (s *Server) handleKeep(c *fiber.Ctx) error {
	var req rangeReq
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err))
	}
	from, to := req.times()
	res, err := s.deps.Settle.AcceptKeep(c.Context(), from, to)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"createdCount": res.CreatedCount,
		"window":       toWindowResp(res.Window),
		"from":         res.From,
		"to":           res.To,
	})
}

func (s *Server) handleIsSettled(c *fiber.Ctx) error {
	at, err := parseTimeQuery(c, "at", true)
	if err != nil {
		return s.fail(c, err)
	}
	settled, err := s.deps.Settle.IsSettled(c.Context(), at)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"at": at, "settled": settled})
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	from, to, err := parseRangeQuery(c)
	if err != nil {
		return s.fail(c, err)
	}
	summary, err := s.deps.Query.BuildSummary(c.Context(), from, to)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(summary)
}

func (s *Server) handleSettleView(c *fiber.Ctx) error {
	from, to, err := parseRangeQuery(c)
	if err != nil {
		return s.fail(c, err)
	}
	page, err := s.deps.Query.SettleView(c.Context(), from, to, c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(page)
}

func (s *Server) handleKeepView(c *fiber.Ctx) error {
	from, to, err := parseRangeQuery(c)
	if err != nil {
		return s.fail(c, err)
	}
	page, err := s.deps.Query.KeepView(c.Context(), from, to, c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(page)
}

func (s *Server) handleErase(c *fiber.Ctx) error {
	var req rangeReq
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err))
	}
	from, to := req.times()
	counts, window, err := s.deps.Settle.Erase(c.Context(), from, to)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"window":  toWindowResp(window),
		"deleted": counts,
	})
}

func (s *Server) handleLatestWindow(c *fiber.Ctx) error {
	window, err := s.deps.Store.LatestWindow(c.Context(), s.deps.Store.DB())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(toWindowResp(window))
}

type createWindowReq struct {
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

func (s *Server) handleCreateWindow(c *fiber.Ctx) error {
	var req createWindowReq
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err))
	}
	if req.StartAt.IsZero() || req.EndAt.IsZero() || !req.StartAt.Before(req.EndAt) {
		return s.fail(c, fmt.Errorf("%w: startAt must be before endAt", domain.ErrInvalidInput))
	}
	window, err := s.deps.Store.CreateWindow(c.Context(), req.StartAt, req.EndAt)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toWindowResp(window))
}

func (s *Server) handleGetPrizes(c *fiber.Ctx) error {
	windowID := int64(c.QueryInt("windowId"))
	if windowID <= 0 {
		return s.fail(c, fmt.Errorf("%w: windowId is required", domain.ErrInvalidInput))
	}
	setting, err := s.deps.Store.PrizeSetting(c.Context(), windowID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(prizeResp(setting))
}

type putPrizesReq struct {
	WindowID int64            `json:"windowId"`
	Win3     string           `json:"win3"`
	WinLow2  string           `json:"winLow2"`
	Payouts  map[string]int64 `json:"payouts"`
}

func (s *Server) handlePutPrizes(c *fiber.Ctx) error {
	var req putPrizesReq
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err))
	}
	if req.WindowID <= 0 {
		return s.fail(c, fmt.Errorf("%w: windowId is required", domain.ErrInvalidInput))
	}
	if !domain.CategoryTop3.ValidNumber(req.Win3) {
		return s.fail(c, fmt.Errorf("%w: win3 must be 3 digits", domain.ErrInvalidInput))
	}
	if !domain.CategoryBottom2.ValidNumber(req.WinLow2) {
		return s.fail(c, fmt.Errorf("%w: winLow2 must be 2 digits", domain.ErrInvalidInput))
	}
	if _, err := s.deps.Store.WindowByID(c.Context(), req.WindowID); err != nil {
		return s.fail(c, err)
	}

	setting := domain.PrizeSetting{
		TimeWindowID: req.WindowID,
		Win3:         req.Win3,
		WinLow2:      req.WinLow2,
		Payouts:      make(map[domain.Category]int64, len(req.Payouts)),
	}
	for name, rate := range req.Payouts {
		category, err := domain.ParseCategory(name)
		if err != nil {
			return s.fail(c, err)
		}
		if rate < 0 {
			return s.fail(c, fmt.Errorf("%w: payout for %s is negative", domain.ErrInvalidInput, category))
		}
		setting.Payouts[category] = rate
	}

	if err := s.deps.Store.UpsertPrizeSetting(c.Context(), setting); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(prizeResp(setting))
}

func prizeResp(p domain.PrizeSetting) fiber.Map {
	payouts := make(fiber.Map, len(p.Payouts))
	for cat, rate := range p.Payouts {
		payouts[string(cat)] = rate
	}
	return fiber.Map{
		"windowId": p.TimeWindowID,
		"win3":     p.Win3,
		"winLow2":  p.WinLow2,
		"payouts":  payouts,
	}
}

func parseRangeQuery(c *fiber.Ctx) (time.Time, time.Time, error) {
	from, err := parseTimeQuery(c, "from", false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTimeQuery(c, "to", false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseTimeQuery(c *fiber.Ctx, name string, required bool) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			return time.Time{}, fmt.Errorf("%w: query parameter %q is required", domain.ErrInvalidInput, name)
		}
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not RFC3339", domain.ErrInvalidInput, raw)
	}
	return ts, nil
}
