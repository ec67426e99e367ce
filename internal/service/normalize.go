package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"hostelgate/internal/models"
)

type guestSynonym struct {
	keys []string
	set  func(g *models.GuestInput, v string)
}

// guestSynonyms maps each GuestInput field to the input keys accepted for
// it, most preferred first. Forms and older clients send camelCase,
// snake_case and Spanish spellings; the first non-empty key wins.
var guestSynonyms = []guestSynonym{
	{
		keys: []string{"fullName", "full_name", "nombreCompleto", "nombre_completo", "name", "nombre"},
		set:  func(g *models.GuestInput, v string) { g.FullName = v },
	},
	{
		keys: []string{"documentType", "document_type", "docType", "doc_type", "tipoDocumento", "tipo_documento", "tipo_identificacion"},
		set:  func(g *models.GuestInput, v string) { g.DocumentType = v },
	},
	{
		keys: []string{"documentNumber", "document_number", "docNumber", "doc", "numeroDocumento", "numero_documento", "numero_identificacion"},
		set:  func(g *models.GuestInput, v string) { g.DocumentNumber = v },
	},
	{
		keys: []string{"nationality", "nacionalidad", "country", "pais"},
		set:  func(g *models.GuestInput, v string) { g.Nationality = v },
	},
	{
		keys: []string{"birthDate", "birth_date", "fechaNacimiento", "fecha_nacimiento"},
		set:  func(g *models.GuestInput, v string) { g.BirthDate = v },
	},
	{
		keys: []string{"phone", "phoneNumber", "phone_number", "telefono", "celular", "mobile"},
		set:  func(g *models.GuestInput, v string) { g.Phone = v },
	},
	{
		keys: []string{"email", "correo", "mail"},
		set:  func(g *models.GuestInput, v string) { g.Email = v },
	},
	{
		keys: []string{"residenceCity", "residence_city", "ciudadResidencia", "ciudad_residencia", "cuidad_residencia"},
		set:  func(g *models.GuestInput, v string) { g.ResidenceCity = v },
	},
	{
		keys: []string{"originCity", "origin_city", "ciudadProcedencia", "ciudad_procedencia", "cuidad_procedencia", "procedencia"},
		set:  func(g *models.GuestInput, v string) { g.OriginCity = v },
	},
	{
		keys: []string{"destinationCity", "destination_city", "ciudadDestino", "ciudad_destino", "cuidad_destino", "destino"},
		set:  func(g *models.GuestInput, v string) { g.DestinationCity = v },
	},
	{
		keys: []string{"originAddress", "origin_address", "direccionOrigen", "direccion_origen"},
		set:  func(g *models.GuestInput, v string) { g.OriginAddress = v },
	},
	{
		keys: []string{"destinationAddress", "destination_address", "direccionDestino", "direccion_destino"},
		set:  func(g *models.GuestInput, v string) { g.DestAddress = v },
	},
	{
		keys: []string{"travelReason", "travel_reason", "motivoViaje", "motivo_viaje", "motivo"},
		set:  func(g *models.GuestInput, v string) { g.TravelReason = v },
	},
	{
		keys: []string{"arrivalDate", "arrival_date", "checkIn", "check_in", "fechaLlegada", "fecha_llegada"},
		set:  func(g *models.GuestInput, v string) { g.ArrivalDate = v },
	},
	{
		keys: []string{"departureDate", "departure_date", "checkOut", "check_out", "fechaSalida", "fecha_salida"},
		set:  func(g *models.GuestInput, v string) { g.DepartureDate = v },
	},
}

// NormalizeGuest builds a GuestInput from loosely keyed form data.
func NormalizeGuest(raw map[string]any) models.GuestInput {
	var g models.GuestInput
	for _, syn := range guestSynonyms {
		for _, key := range syn.keys {
			if v := stringValue(raw[key]); v != "" {
				syn.set(&g, v)
				break
			}
		}
	}
	return g
}

func NormalizeGuests(raw []map[string]any) []models.GuestInput {
	out := make([]models.GuestInput, 0, len(raw))
	for _, r := range raw {
		out = append(out, NormalizeGuest(r))
	}
	return out
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

// digitsOnly keeps 0-9 so phone numbers compare regardless of formatting.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var (
	reservationKeys = []string{"reservationNumber", "reservation_number", "reservation", "numeroReserva", "numero_reserva"}
	companionKeys   = []string{"companions", "acompanantes", "guests"}
)

// BuildSubmission turns a decoded check-in form into a submission. The
// top-level object is the submitting guest; companions are read from the
// first companion key holding a list of objects.
func BuildSubmission(raw map[string]any) models.CheckinSubmission {
	sub := models.CheckinSubmission{Guest: NormalizeGuest(raw)}
	for _, key := range reservationKeys {
		if v := stringValue(raw[key]); v != "" {
			sub.ReservationNumber = v
			break
		}
	}
	for _, key := range companionKeys {
		list, ok := raw[key].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				sub.Companions = append(sub.Companions, NormalizeGuest(m))
			}
		}
		break
	}
	return sub
}
