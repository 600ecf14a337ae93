package domain

import "fmt"

// CategoryUnclassified is assigned when the model proposes a category outside
// the closed set.
const CategoryUnclassified = "Sin clasificar"

// ReceiptCategories is the closed set the extraction prompt constrains the
// model to.
var ReceiptCategories = []string{
	"Otros servicios",
	"Hogar",
	"Aeorolinea",
	"Transporte",
	"Alojamiento",
	"Salud",
	"Viajes y Turismo",
	"Electro y Tecnologia",
	"Servicios Financieros",
	"Comercio Minorista",
	"Combustible",
	"Recreacion",
	"Cuidado y Belleza",
	"Gastronomia",
	"Jugueteria",
	"Educación",
	"Supermercado",
	"Servicios Publicos",
}

// IsValidCategory reports membership in the closed category set.
func IsValidCategory(category string) bool {
	for _, c := range ReceiptCategories {
		if c == category {
			return true
		}
	}
	return false
}

// ExtractedReceipt is the normalized output of the extraction adapter.
// Amount is required; IvaAmount stays nil when the receipt has no
// discriminated tax line.
type ExtractedReceipt struct {
	MerchantName string   `json:"merchant_name"`
	Date         string   `json:"date"`
	Amount       float64  `json:"amount"`
	Currency     string   `json:"currency"`
	IvaAmount    *float64 `json:"iva_amount"`
	Category     string   `json:"category"`
}

// ToTempData converts the receipt into the session's captured-fields map.
func (r *ExtractedReceipt) ToTempData() TempData {
	data := TempData{
		"merchant_name": r.MerchantName,
		"date":          r.Date,
		"amount":        r.Amount,
		"currency":      r.Currency,
		"category":      r.Category,
	}
	if r.IvaAmount != nil {
		data["iva_amount"] = *r.IvaAmount
	} else {
		data["iva_amount"] = nil
	}
	return data
}

// SummaryText renders the user-facing review of captured fields, in the tone
// the WhatsApp flow uses.
func SummaryText(data TempData) string {
	iva := "No discriminado"
	if v, ok := data["iva_amount"]; ok && v != nil {
		iva = fmt.Sprintf("$%v", v)
	}
	return fmt.Sprintf(
		"Leí esto:\n🏢 Comercio: %v\n📅 Fecha: %v\n💰 Monto: $%v %v\n💵 IVA: %s\n🏷️ Categoría: %v\n\n¿Es correcto?",
		data["merchant_name"], data["date"], data["amount"], data["currency"], iva, data["category"])
}

// UpdatedSummaryText renders the post-edit review asking for reconfirmation.
func UpdatedSummaryText(data TempData) string {
	iva := "No discriminado"
	if v, ok := data["iva_amount"]; ok && v != nil {
		iva = fmt.Sprintf("$%v", v)
	}
	return fmt.Sprintf(
		"Dato actualizado. Revisemos:\n🏢 Comercio: %v\n📅 Fecha: %v\n💰 Monto: $%v %v\n💵 IVA: %s\n\n¿Confirmamos ahora? (Responde *Sí*)",
		data["merchant_name"], data["date"], data["amount"], data["currency"], iva)
}
