package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"autotrader/internal/models"
)

const (
	// API endpoints (KIS открытый API, заокеанские акции)
	tokenEndpoint          = "/oauth2/tokenP"
	hashkeyEndpoint        = "/uapi/hashkey"
	orderEndpoint          = "/uapi/overseas-stock/v1/trading/order"
	orderCancelEndpoint    = "/uapi/overseas-stock/v1/trading/order-rvsecncl"
	priceEndpoint          = "/uapi/overseas-price/v1/quotations/price"
	candlesEndpoint        = "/uapi/overseas-price/v1/quotations/inquire-time-itemchartprice"
	presentBalanceEndpoint = "/uapi/overseas-stock/v1/trading/inquire-present-balance"
	psamountEndpoint       = "/uapi/overseas-stock/v1/trading/inquire-psamount"

	// Транзакционные коды
	trIDBuy     = "TTTT1002U" // покупка US акций
	trIDSell    = "TTTT1006U" // продажа US акций
	trIDCancel  = "TTTT1004U"
	trIDPrice   = "HHDFS00000300"
	trIDCandles = "HHDFS76950200"
	trIDBalance = "CTRP6504R"
	trIDPsamnt  = "TTTS3007R"
)

// Биржевые коды по умолчанию: котировки и ордера используют разные
// справочники KIS
const (
	defaultPriceExchange = "NAS"
	defaultOrderExchange = "NASD"
)

// seoulLocation - время свечей KIS отдает по Сеулу
var seoulLocation = loadSeoul()

func loadSeoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}

	return loc
}

// KISClient - клиент Korea Investment & Securities open API
type KISClient struct {
	client  *resty.Client
	tokens  *TokenManager
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewKISClient создает KIS клиент с общим rate limiter.
// KIS режет частые запросы, держим не больше 10 вызовов в секунду.
func NewKISClient(baseURL string, logger *slog.Logger) *KISClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(15 * time.Second)
	client.SetHeader("Content-Type", "application/json; charset=utf-8")

	return &KISClient{
		client:  client,
		tokens:  NewTokenManager(client, logger),
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		logger:  logger,
	}
}

// kisEnvelope - общая обертка ответов KIS
type kisEnvelope struct {
	RtCd  string `json:"rt_cd"`
	MsgCd string `json:"msg_cd"`
	Msg1  string `json:"msg1"`
}

func (e kisEnvelope) ok() bool {
	return e.RtCd == "0"
}

// prepare ждет лимитер и получает токен
func (c *KISClient) prepare(ctx context.Context, bctx models.BrokerContext) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	return c.tokens.GetAccessToken(ctx, bctx.AppKey, bctx.AppSecret)
}

// authHeaders - обязательные заголовки для авторизованных вызовов
func (c *KISClient) authHeaders(token string, bctx models.BrokerContext, trID string) map[string]string {
	return map[string]string{
		"authorization": "Bearer " + token,
		"appkey":        bctx.AppKey,
		"appsecret":     bctx.AppSecret,
		"tr_id":         trID,
		"custtype":      "P",
	}
}

// getHashKey запрашивает hashkey для тела ордера (требование KIS)
func (c *KISClient) getHashKey(ctx context.Context, bctx models.BrokerContext, body any) string {
	var result struct {
		Hash string `json:"HASH"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("appkey", bctx.AppKey).
		SetHeader("appsecret", bctx.AppSecret).
		SetBody(body).
		SetResult(&result).
		Post(hashkeyEndpoint)
	if err != nil || resp.IsError() {
		c.logger.Warn("Hashkey generation failed", slog.Any("error", err))

		return ""
	}

	return result.Hash
}

// SendOrder отправляет лимитный ордер
func (c *KISClient) SendOrder(ctx context.Context, bctx models.BrokerContext, order models.StockOrder) OrderResult {
	token, err := c.prepare(ctx, bctx)
	if err != nil {
		c.logger.Error("❌ KIS order prep failed", slog.Any("error", err))

		return OrderResult{Success: false, Message: err.Error()}
	}

	trID := trIDBuy
	body := map[string]string{
		"CANO":            bctx.Cano,
		"ACNT_PRDT_CD":    bctx.AcntPrdtCd,
		"OVRS_EXCG_CD":    defaultOrderExchange,
		"PDNO":            order.Ticker,
		"ORD_QTY":         strconv.Itoa(order.Quantity),
		"OVRS_ORD_UNPR":   fmt.Sprintf("%.2f", order.Price),
		"ORD_SVR_DVSN_CD": "0",
		"ORD_DVSN":        "00",
	}

	if order.Type == models.OrderSell {
		trID = trIDSell
		body["SLL_TYPE"] = "00"
	}

	var result struct {
		kisEnvelope
		Output struct {
			Odno string `json:"ODNO"`
		} `json:"output"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders(token, bctx, trID)).
		SetHeader("hashkey", c.getHashKey(ctx, bctx, body)).
		SetBody(body).
		SetResult(&result).
		Post(orderEndpoint)
	if err != nil {
		c.logger.Error("❌ KIS order request failed", slog.Any("error", err))

		return OrderResult{Success: false, Message: err.Error()}
	}

	if resp.IsError() || !result.ok() {
		c.logger.Error("❌ KIS order rejected",
			slog.String("ticker", order.Ticker),
			slog.String("rt_cd", result.RtCd),
			slog.String("msg", result.Msg1))

		return OrderResult{Success: false, Message: result.Msg1}
	}

	c.logger.Info("✅ KIS order accepted",
		slog.String("ticker", order.Ticker),
		slog.String("type", string(order.Type)),
		slog.String("order_id", result.Output.Odno))

	return OrderResult{Success: true, OrderID: result.Output.Odno}
}

// CancelOrder отменяет ордер по номеру. Неуспех отмены трактуется
// вызывающим кодом как подтверждение исполнения.
func (c *KISClient) CancelOrder(ctx context.Context, bctx models.BrokerContext, orderID string) CancelResult {
	token, err := c.prepare(ctx, bctx)
	if err != nil {
		return CancelResult{Success: false, Message: err.Error()}
	}

	body := map[string]string{
		"CANO":              bctx.Cano,
		"ACNT_PRDT_CD":      bctx.AcntPrdtCd,
		"OVRS_EXCG_CD":      defaultOrderExchange,
		"PDNO":              "",
		"ORGN_ODNO":         orderID,
		"RVSE_CNCL_DVSN_CD": "02", // 02 = отмена
		"ORD_QTY":           "0",  // 0 = отменить весь остаток
		"OVRS_ORD_UNPR":     "0",
		"ORD_SVR_DVSN_CD":   "0",
	}

	var result kisEnvelope

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders(token, bctx, trIDCancel)).
		SetHeader("hashkey", c.getHashKey(ctx, bctx, body)).
		SetBody(body).
		SetResult(&result).
		Post(orderCancelEndpoint)
	if err != nil {
		return CancelResult{Success: false, Message: err.Error()}
	}

	if resp.IsError() || !result.ok() {
		c.logger.Warn("KIS cancel rejected",
			slog.String("order_id", orderID),
			slog.String("msg", result.Msg1))

		return CancelResult{Success: false, Message: result.Msg1}
	}

	c.logger.Info("✅ KIS order cancelled", slog.String("order_id", orderID))

	return CancelResult{Success: true}
}

// GetCurrentPrice возвращает последнюю цену сделки
func (c *KISClient) GetCurrentPrice(ctx context.Context, bctx models.BrokerContext, ticker string) (float64, error) {
	token, err := c.prepare(ctx, bctx)
	if err != nil {
		return 0, err
	}

	var result struct {
		kisEnvelope
		Output struct {
			Last string `json:"last"`
		} `json:"output"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders(token, bctx, trIDPrice)).
		SetQueryParams(map[string]string{
			"AUTH": "",
			"EXCD": defaultPriceExchange,
			"SYMB": ticker,
		}).
		SetResult(&result).
		Get(priceEndpoint)
	if err != nil {
		return 0, fmt.Errorf("price request failed: %w", err)
	}

	if resp.IsError() {
		return 0, fmt.Errorf("price request returned %d", resp.StatusCode())
	}

	price, _ := strconv.ParseFloat(result.Output.Last, 64)

	return price, nil
}

// GetRecentCandles возвращает минутные свечи, от старых к новым
func (c *KISClient) GetRecentCandles(ctx context.Context, bctx models.BrokerContext, ticker string, limit int) ([]models.StockCandle, error) {
	return c.fetchCandles(ctx, bctx, ticker, limit, 1)
}

// GetRecentCandles5Min возвращает 5-минутные свечи, от старых к новым
func (c *KISClient) GetRecentCandles5Min(ctx context.Context, bctx models.BrokerContext, ticker string, limit int) ([]models.StockCandle, error) {
	return c.fetchCandles(ctx, bctx, ticker, limit, 5)
}

type kisCandle struct {
	Kymd string `json:"kymd"`
	Khms string `json:"khms"`
	Open string `json:"open"`
	High string `json:"high"`
	Low  string `json:"low"`
	Last string `json:"last"`
	Evol string `json:"evol"`
}

func (c *KISClient) fetchCandles(ctx context.Context, bctx models.BrokerContext, ticker string, limit, nmin int) ([]models.StockCandle, error) {
	token, err := c.prepare(ctx, bctx)
	if err != nil {
		return nil, err
	}

	var result struct {
		kisEnvelope
		Output2 []kisCandle `json:"output2"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders(token, bctx, trIDCandles)).
		SetQueryParams(map[string]string{
			"AUTH": "",
			"EXCD": defaultPriceExchange,
			"SYMB": ticker,
			"NMIN": strconv.Itoa(nmin),
			"NREC": strconv.Itoa(limit),
			"PINC": "1",
			"NEXT": "",
			"FILL": "",
			"KEYB": "",
		}).
		SetResult(&result).
		Get(candlesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("candles request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("candles request returned %d", resp.StatusCode())
	}

	// KIS отдает от новых к старым, разворачиваем
	candles := make([]models.StockCandle, 0, len(result.Output2))
	for i := len(result.Output2) - 1; i >= 0; i-- {
		raw := result.Output2[i]

		ymd := raw.Kymd
		if ymd == "" {
			ymd = time.Now().In(seoulLocation).Format("20060102")
		}

		ts, err := time.ParseInLocation("20060102150405", ymd+raw.Khms, seoulLocation)
		if err != nil {
			continue
		}

		candles = append(candles, models.StockCandle{
			Timestamp: ts,
			Open:      parseFloat(raw.Open),
			High:      parseFloat(raw.High),
			Low:       parseFloat(raw.Low),
			Close:     parseFloat(raw.Last),
			Volume:    parseFloat(raw.Evol),
		})
	}

	return candles, nil
}

// GetAccountAsset возвращает снимок счета: позиции и свободные USD
func (c *KISClient) GetAccountAsset(ctx context.Context, bctx models.BrokerContext) (models.Asset, error) {
	token, err := c.prepare(ctx, bctx)
	if err != nil {
		return models.Asset{}, err
	}

	var balance struct {
		kisEnvelope
		Output1 []struct {
			Pdno         string `json:"pdno"`
			ItemName     string `json:"ovrs_item_name"`
			Quantity     string `json:"ccld_qty_smtl1"`
			AvgPrice     string `json:"avg_unpr3"`
			CurrentPrice string `json:"ovrs_now_pric1"`
			ProfitRate   string `json:"evlu_pfls_rt"`
		} `json:"output1"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders(token, bctx, trIDBalance)).
		SetQueryParams(map[string]string{
			"CANO":              bctx.Cano,
			"ACNT_PRDT_CD":      bctx.AcntPrdtCd,
			"WCRC_FRCR_DVSN_CD": "02",
			"NATN_CD":           "000",
			"TR_MKET_CD":        "00",
			"INQR_DVSN_CD":      "00",
		}).
		SetResult(&balance).
		Get(presentBalanceEndpoint)
	if err != nil {
		return models.Asset{}, fmt.Errorf("balance request failed: %w", err)
	}

	if resp.IsError() {
		return models.Asset{}, fmt.Errorf("balance request returned %d", resp.StatusCode())
	}

	asset := models.Asset{AccountNo: bctx.AccountNo}

	for _, row := range balance.Output1 {
		qty := int(parseFloat(row.Quantity))
		if qty <= 0 {
			continue
		}

		asset.OwnedStocks = append(asset.OwnedStocks, models.OwnedStock{
			Ticker:       row.Pdno,
			Name:         row.ItemName,
			Quantity:     qty,
			AveragePrice: parseFloat(row.AvgPrice),
			CurrentPrice: parseFloat(row.CurrentPrice),
			ProfitRate:   parseFloat(row.ProfitRate),
		})
	}

	asset.USDDeposit = c.fetchUSDDeposit(ctx, bctx, token)

	stockValue := 0.0
	for _, s := range asset.OwnedStocks {
		stockValue += s.CurrentPrice * float64(s.Quantity)
	}

	asset.TotalAsset = asset.USDDeposit + stockValue

	return asset, nil
}

// fetchUSDDeposit запрашивает доступный остаток в долларах.
// Ошибка дает 0, снимок счета при этом остается полезным.
func (c *KISClient) fetchUSDDeposit(ctx context.Context, bctx models.BrokerContext, token string) float64 {
	var result struct {
		kisEnvelope
		Output struct {
			OrdPsblFrcrAmt string `json:"ord_psbl_frcr_amt"`
			OvrsOrdPsblAmt string `json:"ovrs_ord_psbl_amt"`
		} `json:"output"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders(token, bctx, trIDPsamnt)).
		SetQueryParams(map[string]string{
			"CANO":          bctx.Cano,
			"ACNT_PRDT_CD":  bctx.AcntPrdtCd,
			"OVRS_EXCG_CD":  defaultOrderExchange,
			"OVRS_ORD_UNPR": "23.8",
			"ITEM_CD":       "AAPL",
		}).
		SetResult(&result).
		Get(psamountEndpoint)
	if err != nil || resp.IsError() {
		c.logger.Warn("USD deposit fetch failed", slog.Any("error", err))

		return 0
	}

	deposit := parseFloat(result.Output.OrdPsblFrcrAmt)
	if deposit == 0 {
		deposit = parseFloat(result.Output.OvrsOrdPsblAmt)
	}

	return deposit
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
