package jdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/shopspring/decimal"

	"ticket-resale/internal/status"
)

type (
	Config struct {
		AID        string `json:"aid" mapstructure:"aid"`
		IIN        string `json:"iin" mapstructure:"iin"`
		ReceiverID string `json:"receiverId" mapstructure:"receiverId"`
		MCC        string `json:"mcc" mapstructure:"mcc"`
		CCy        string `json:"ccy" mapstructure:"ccy"`
		Country    string `json:"country" mapstructure:"country"`
		MName      string `json:"MName" mapstructure:"mname"`
		MCity      string `json:"mcity" mapstructure:"mcity"`

		PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
		PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
		PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
		PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
		PNCipherKey string `json:"pn_cipherKey" mapstructure:"pn_cipherkey"`

		BaseURL string `json:"baseUrl" mapstructure:"base_url"`

		PartnerID string `json:"partnerId" mapstructure:"partner_id"`
		ClientID  string `json:"clientId" mapstructure:"client_id"`
		ClientKey string `json:"clientKey" mapstructure:"client_key"`
		HMACKey   string `json:"hmacKey" mapstructure:"hmac_key"`
	}

	// Yespay is the JDB YesPay merchant integration. It generates payment
	// QR codes for settled negotiations and feeds confirmed transactions
	// into the channel set via SetTranChannel.
	Yespay struct {
		MerchantID string
		CCy        string
		Country    string
		MName      string
		MCity      string

		pnUUID     string
		pnChannels []string

		sub    *subscribe
		client *Client
	}
)

// payload is the wire shape of a transaction notification.
type payload struct {
	RefID         string          `json:"refNo"`
	UUID          string          `json:"billNumber"`
	FCCRef        string          `json:"exReferenceNo"`
	Ccy           string          `json:"sourceCurrency"`
	Payer         string          `json:"sourceName"`
	AccountNumber string          `json:"sourceAccount"`
	Amount        decimal.Decimal `json:"txnAmount"`
	CreatedAt     string          `json:"txnDateTime"`
}

func (p *payload) ToDomain() (*status.Transaction, error) {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", p.CreatedAt, time.Local)
	if err != nil {
		return nil, err
	}

	return &status.Transaction{
		RefID:         p.RefID,
		UUID:          p.UUID,
		FCCRef:        p.FCCRef,
		Ccy:           p.Ccy,
		Payer:         p.Payer,
		AccountNumber: p.AccountNumber,
		Amount:        p.Amount,
		CreatedAt:     ts,
	}, nil
}

// New authenticates against the JDB backend and opens the merchant's
// PubNub notification feed.
func New(ctx context.Context, cfg *Config) (*Yespay, error) {
	if cfg.BaseURL == "" {
		// Bank integration not configured; settlement endpoints will be
		// unavailable but the rest of the app still runs.
		return nil, nil
	}

	client := newClient(ctx, &ClientConfig{
		BaseURL:   cfg.BaseURL,
		PartnerID: cfg.PartnerID,
		ClientID:  cfg.ClientID,
		ClientKey: cfg.ClientKey,
		HMACKey:   cfg.HMACKey,
	})

	token, err := client.connect(ctx)
	if err != nil {
		return nil, err
	}
	client.setAccessToken(token)

	go client.notifyAccessTokenExpired(ctx)

	y := &Yespay{
		MerchantID: cfg.ReceiverID,
		CCy:        cfg.CCy,
		Country:    cfg.Country,
		MName:      cfg.MName,
		MCity:      cfg.MCity,

		pnUUID:     cfg.PNUUID,
		pnChannels: []string{cfg.PNChannel},

		client: client,
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PNUUID))
	pnCfg.SubscribeKey = cfg.PNSubKey
	pnCfg.CipherKey = cfg.PNCipherKey
	pnCfg.SecretKey = cfg.PNSubSecret

	sub := &subscribe{
		pn:  pubnub.NewPubNub(pnCfg),
		lis: pubnub.NewListener(),
	}
	sub.pn.AddListener(sub.lis)
	go sub.run(ctx)

	y.sub = sub

	return y, nil
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *status.Transaction
}

func (s *subscribe) run(ctx context.Context) {
	for {
		select {
		case st := <-s.lis.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				slog.Info("jdb: pubnub connected")
			case pubnub.PNReconnectedCategory:
				slog.Info("jdb: pubnub reconnected")
			case pubnub.PNDisconnectedCategory:
				slog.Warn("jdb: pubnub disconnected")
			case pubnub.PNAccessDeniedCategory:
				slog.Error("jdb: pubnub access denied")
			case pubnub.PNTimeoutCategory:
				slog.Warn("jdb: pubnub timeout")
			default:
				slog.Debug("jdb: pubnub status", "category", st.Category)
			}

		case message := <-s.lis.Message:
			raw, ok := message.Message.(string)
			if !ok {
				slog.Warn("jdb: unexpected notification payload", "message", message.Message)
				continue
			}

			var p payload
			if err := json.NewDecoder(strings.NewReader(raw)).Decode(&p); err != nil {
				slog.Error("jdb: decode notification", "error", err)
				continue
			}

			tran, err := p.ToDomain()
			if err != nil {
				slog.Error("jdb: parse notification", "error", err)
				continue
			}

			if s.ch != nil {
				s.ch <- tran
			}

		case <-ctx.Done():
			slog.Info("jdb: closing notification feed")
			return
		}
	}
}

func (y *Yespay) SetTranChannel(ch chan *status.Transaction) {
	y.sub.ch = ch
}

// addChannel subscribes to the per-bill notification channel, replaying
// the last two minutes in case the notification raced the subscription.
func (y *Yespay) addChannel(_ context.Context, uuid string) {
	channel := fmt.Sprintf("%s_%s", y.MerchantID, uuid)
	tt := time.Now().Add(-2*time.Minute).Unix() * 10000
	y.sub.pn.Subscribe().Channels([]string{channel}).Timetoken(tt).Execute()
}

func (y *Yespay) Unsubscribe(ctx context.Context, uuid string) {
	y.sub.pn.Unsubscribe().Channels([]string{fmt.Sprintf("%s_%s", y.MerchantID, uuid)}).Execute()
}

func (y *Yespay) CheckTransaction(ctx context.Context, uuid string) (*status.Transaction, error) {
	return y.client.checkTransaction(ctx, uuid)
}

func (y *Yespay) GenQRCode(ctx context.Context, f *status.FormQR) (string, error) {
	if f.MerchantID == "" {
		f.MerchantID = y.MerchantID
	}

	emvCode, err := y.client.generateQR(ctx, f)
	if err != nil {
		return "", err
	}

	y.addChannel(ctx, f.UUID)

	return emvCode, nil
}
