package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"prefest/models"

	"golang.org/x/crypto/hkdf"
)

// TicketSigner signs and verifies the legacy {t, e, k} QR payload. Each event
// gets its own key derived from the signing secret.
type TicketSigner struct {
	secret []byte
}

func NewTicketSigner(secret string) *TicketSigner {
	return &TicketSigner{secret: []byte(secret)}
}

func (s *TicketSigner) eventKey(eventID string) []byte {
	r := hkdf.New(sha256.New, s.secret, nil, []byte("prefest/ticket/"+eventID))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, key); err != nil {
		// hkdf only fails after 255 blocks of output
		panic(err)
	}
	return key
}

func (s *TicketSigner) Sign(participantID, eventID string) string {
	mac := hmac.New(sha256.New, s.eventKey(eventID))
	mac.Write([]byte(participantID + "." + eventID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:18])
}

func (s *TicketSigner) Verify(p models.LegacyPayload) bool {
	if p.T == "" || p.E == "" || p.K == "" {
		return false
	}
	return hmac.Equal([]byte(s.Sign(p.T, p.E)), []byte(p.K))
}

// Payload returns the JSON text encoded in the ticket's QR code.
func (s *TicketSigner) Payload(participantID, eventID string) string {
	b, _ := json.Marshal(models.LegacyPayload{
		T: participantID,
		E: eventID,
		K: s.Sign(participantID, eventID),
	})
	return string(b)
}
