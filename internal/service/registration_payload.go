package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"hostelgate/internal/external"
	"hostelgate/internal/models"
)

const (
	surnameSentinel     = "NA"
	citySentinel        = "N/A"
	defaultTravelReason = "Other"
	payloadDateLayout   = "2006-01-02"
)

// Canonical city fields and the keys each one is emitted under. The
// registration API currently validates the "cuidad_" spellings; the
// "ciudad_" ones are sent alongside so the payload stays valid if the
// API is corrected.
// TODO: drop the "cuidad_" keys once the API accepts "ciudad_" on its own.
const (
	fieldResidenceCity   = "residence_city"
	fieldOriginCity      = "origin_city"
	fieldDestinationCity = "destination_city"
)

var emittedSpellings = map[string][]string{
	fieldResidenceCity:   {"cuidad_residencia", "ciudad_residencia"},
	fieldOriginCity:      {"cuidad_procedencia", "ciudad_procedencia"},
	fieldDestinationCity: {"cuidad_destino", "ciudad_destino"},
}

var dateLayouts = []string{
	payloadDateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	"20060102",
}

// BuildPayload maps one guest to the registration API body. parentCode is
// set for SECONDARY guests only.
func BuildPayload(settings external.TRAConfig, guest models.GuestInput, rctx models.RegistrationContext, companions int, parentCode *string, now time.Time) map[string]any {
	given, surname := splitName(guest.FullName)

	residenceRaw := firstNonEmpty(guest.ResidenceCity, rctx.ResidenceCity, settings.DefaultResidenceCity)
	originRaw := firstNonEmpty(guest.OriginCity, rctx.OriginCity, settings.DefaultOriginCity)
	residence := firstNonEmpty(residenceRaw, originRaw, citySentinel)
	origin := firstNonEmpty(originRaw, residenceRaw, citySentinel)
	destination := firstNonEmpty(guest.DestinationCity, rctx.DestinationCity, settings.DefaultDestinationCity, citySentinel)

	payload := map[string]any{
		"nombre_establecimiento": settings.EstablishmentName,
		"rnt_establecimiento":    settings.EstablishmentRNT,
		"numero_habitacion":      settings.RoomNumber,
		"tipo_acomodacion":       settings.AccommodationType,
		"costo":                  settings.Cost,
		"tipo_identificacion":    guest.DocumentType,
		"numero_identificacion":  guest.DocumentNumber,
		"nombres":                given,
		"apellidos":              surname,
		"nacionalidad":           guest.Nationality,
		"motivo":                 firstNonEmpty(guest.TravelReason, rctx.TravelReason, defaultTravelReason),
		"numero_acompanantes":    companions,
		"check_in":               normalizeDate(firstNonEmpty(guest.ArrivalDate, rctx.CheckIn), now),
		"check_out":              normalizeDate(firstNonEmpty(guest.DepartureDate, rctx.CheckOut), now),
	}
	emit(payload, fieldResidenceCity, residence)
	emit(payload, fieldOriginCity, origin)
	emit(payload, fieldDestinationCity, destination)

	if parentCode != nil {
		payload["padre"] = *parentCode
	}
	return payload
}

func emit(payload map[string]any, field, value string) {
	for _, key := range emittedSpellings[field] {
		payload[key] = value
	}
}

// splitName takes the last token as surname. Single-token names get the
// surname sentinel.
func splitName(full string) (given, surname string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", surnameSentinel
	case 1:
		return parts[0], surnameSentinel
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

// parseDate accepts the layouts in dateLayouts and millisecond epochs.
// All-digit input of 10 or more digits is read as an epoch, shorter
// digit runs as YYYYMMDD.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && len(raw) >= 10 {
		return time.UnixMilli(ms).UTC(), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeDate returns YYYY-MM-DD, or today when raw cannot be parsed.
func normalizeDate(raw string, now time.Time) string {
	if t, ok := parseDate(raw); ok {
		return t.Format(payloadDateLayout)
	}
	return now.Format(payloadDateLayout)
}

// extractAssignedCode looks for the code the registration API assigned,
// at the top level first and then under "data".
func extractAssignedCode(body json.RawMessage) string {
	var top map[string]any
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	if err := dec.Decode(&top); err != nil {
		return ""
	}
	if code := codeFrom(top); code != "" {
		return code
	}
	if data, ok := top["data"].(map[string]any); ok {
		return codeFrom(data)
	}
	return ""
}

var assignedCodeKeys = []string{"code", "codigo", "id", "registro"}

func codeFrom(m map[string]any) string {
	for _, key := range assignedCodeKeys {
		if v := stringValue(m[key]); v != "" {
			return v
		}
	}
	return ""
}
