package flow

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/PolicyPipe/internal/models"
)

// policyTemplateText is the fixed policy document layout. Every field slot is
// filled from the session, with Unknown substituted for anything unresolved.
const policyTemplateText = `Страховий Поліс № {{.PolicyNumber}}

Ім'я застрахованого: {{.FullName}}
Номер паспорта: {{.PassportNumber}}
Автомобіль: {{.CarBrand}} {{.CarModel}}
VIN: {{.VinNumber}}

Дата оформлення: {{.IssuedAt}}
Сума до сплати: {{.PriceUSD}} USD

Цей документ є підтвердженням оформлення автострахування.`

var policyTemplate = template.Must(template.New("policy").Parse(policyTemplateText))

// PolicyDocument holds the values substituted into the policy template.
type PolicyDocument struct {
	PolicyNumber   string
	FullName       string
	PassportNumber string
	CarBrand       string
	CarModel       string
	VinNumber      string
	IssuedAt       string
	PriceUSD       int
}

// NewPolicyNumber generates a short uppercase policy serial.
func NewPolicyNumber() string {
	return "PP-" + strings.ToUpper(uuid.NewString()[:8])
}

// RenderPolicy renders the policy document for a session. A nil session or
// missing fields render as Unknown rather than failing.
func RenderPolicy(sess *models.Session, priceUSD int, issuedAt time.Time) (string, error) {
	doc := PolicyDocument{
		PolicyNumber:   NewPolicyNumber(),
		FullName:       sess.Field(models.FieldFullName),
		PassportNumber: sess.Field(models.FieldPassportNumber),
		CarBrand:       sess.Field(models.FieldCarBrand),
		CarModel:       sess.Field(models.FieldCarModel),
		VinNumber:      sess.Field(models.FieldVinNumber),
		IssuedAt:       issuedAt.Format("02.01.2006"),
		PriceUSD:       priceUSD,
	}

	var b strings.Builder
	if err := policyTemplate.Execute(&b, doc); err != nil {
		return "", fmt.Errorf("render policy: %w", err)
	}
	return b.String(), nil
}
