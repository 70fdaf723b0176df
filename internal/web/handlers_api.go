package web

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/gateway"
	"enocean-go-home/internal/store"
	"enocean-go-home/internal/telegram"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.gw.Devices().ListDevices()
	if err != nil {
		s.logger.Error("list devices", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if devices == nil {
		devices = []*store.Device{}
	}
	s.writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.gw.Devices().GetDevice(r.PathValue("chip"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	s.writeJSON(w, http.StatusOK, dev)
}

func (s *Server) handleAPICreateDevice(w http.ResponseWriter, r *http.Request) {
	var req gateway.NewDevice
	if !s.decodeBody(w, r, &req) {
		return
	}

	dev, err := s.gw.Devices().AddDevice(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, dev)
}

type updateDeviceRequest struct {
	FriendlyName *string `json:"friendly_name"`
	LocalID      *string `json:"local_id"`
}

func (s *Server) handleAPIUpdateDevice(w http.ResponseWriter, r *http.Request) {
	chip := r.PathValue("chip")

	var req updateDeviceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.LocalID != nil && *req.LocalID != "" {
		if _, err := telegram.ParseLocalID(*req.LocalID); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	dev, err := s.gw.Devices().UpdateDevice(chip, func(dev *store.Device) error {
		if req.FriendlyName != nil {
			dev.FriendlyName = strings.TrimSpace(*req.FriendlyName)
		}
		if req.LocalID != nil {
			dev.LocalID = *req.LocalID
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		s.logger.Error("update device", "err", err, "chip", chip)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, dev)
}

func (s *Server) handleAPIDeleteDevice(w http.ResponseWriter, r *http.Request) {
	chip := r.PathValue("chip")
	if err := s.gw.Devices().RemoveDevice(chip); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "device not found")
			return
		}
		if errors.Is(err, telegram.ErrInvalidLocalID) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("delete device", "err", err, "chip", chip)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sendCommandRequest struct {
	Channel string    `json:"channel"`
	Value   eep.OnOff `json:"value"`
}

func (s *Server) handleAPISendCommand(w http.ResponseWriter, r *http.Request) {
	chip := r.PathValue("chip")

	var req sendCommandRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	ch, err := eep.ParseChannel(req.Channel)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.gw.SendCommand(r.Context(), chip, eep.Command{Channel: ch, Value: req.Value})
	if err != nil {
		status := commandStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("send command", "err", err, "chip", chip)
		}
		s.writeError(w, status, err.Error())
		return
	}

	raw, _ := t.Encode()
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"telegram": hex.EncodeToString(raw),
	})
}

// commandStatus maps a SendCommand error to an HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, eep.ErrUnsupportedCommand),
		errors.Is(err, eep.ErrUnknownProfile),
		errors.Is(err, telegram.ErrInvalidLocalID),
		errors.Is(err, gateway.ErrNoLocalID):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNoTransmitter):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

type telegramRequest struct {
	Telegram string `json:"telegram"`
	gateway.Metadata
}

// resultView is the JSON form of a decode result.
type resultView struct {
	Profile      eep.ProfileKey     `json:"profile"`
	Values       []eep.ChannelValue `json:"values"`
	Unrecognized []string           `json:"unrecognized,omitempty"`
}

func newResultView(res eep.Result) resultView {
	v := resultView{Profile: res.Profile, Values: res.Values}
	if v.Values == nil {
		v.Values = []eep.ChannelValue{}
	}
	for _, u := range res.Unrecognized {
		v.Unrecognized = append(v.Unrecognized, u.Error())
	}
	return v
}

func (s *Server) handleAPIIngestTelegram(w http.ResponseWriter, r *http.Request) {
	var req telegramRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	raw, err := parseHex(req.Telegram)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid telegram hex")
		return
	}

	res, err := s.gw.HandleTelegram(raw, req.Metadata)
	switch {
	case errors.Is(err, telegram.ErrMalformedTelegram):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, eep.ErrUnknownProfile):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.logger.Error("ingest telegram", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, newResultView(res))
}

type decodeRequest struct {
	Telegram string `json:"telegram"`
	Profile  string `json:"profile"`
}

// telegramView is the JSON form of a decoded telegram.
type telegramView struct {
	RORG             string `json:"rorg"`
	Payload          string `json:"payload"`
	SenderID         string `json:"sender_id"`
	DestinationID    string `json:"destination_id"`
	Status           byte   `json:"status"`
	SubTelegramCount byte   `json:"sub_telegram_count"`
	DBm              int8   `json:"dbm"`
	SecurityLevel    byte   `json:"security_level"`
}

func newTelegramView(t telegram.Telegram) telegramView {
	return telegramView{
		RORG:             strings.ToUpper(hex.EncodeToString([]byte{t.RORG})),
		Payload:          strings.ToUpper(hex.EncodeToString(t.Payload)),
		SenderID:         telegram.FormatID(t.SenderID),
		DestinationID:    telegram.FormatID(t.DestinationID),
		Status:           t.Status,
		SubTelegramCount: t.SubTelegramCount,
		DBm:              t.DBm,
		SecurityLevel:    t.SecurityLevel,
	}
}

// handleAPIDecodeTelegram decodes a telegram without touching device state.
func (s *Server) handleAPIDecodeTelegram(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	raw, err := parseHex(req.Telegram)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid telegram hex")
		return
	}
	t, err := telegram.Decode(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var key eep.ProfileKey
	if req.Profile != "" {
		if key, err = eep.ParseDeviceType(req.Profile); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		var ok bool
		if key, ok = eep.DefaultKey(t.RORG); !ok {
			s.writeError(w, http.StatusBadRequest, "profile is required for this rorg")
			return
		}
	}

	res, err := s.gw.Dispatcher().Decode(key, t)
	switch {
	case errors.Is(err, eep.ErrUnknownProfile):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"telegram": newTelegramView(t),
		"result":   newResultView(res),
	})
}

func (s *Server) handleAPIListProfiles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.gw.Dispatcher().Profiles())
}

func (s *Server) handleAPIUnknownProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.gw.Store().ListUnknownProfiles()
	if err != nil {
		s.logger.Error("list unknown profiles", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if profiles == nil {
		profiles = []*store.UnknownProfile{}
	}
	s.writeJSON(w, http.StatusOK, profiles)
}

// parseHex accepts hex with optional spaces or colons between bytes.
func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return nil, errors.New("empty telegram")
	}
	return hex.DecodeString(s)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
