// Package services – OrderValidator
//
// This file implements the gate in front of order creation. A raw JSON
// payload is checked rule by rule in a fixed order (products, firstname,
// lastname, phonenumber, address, then the optional comment and
// payment_method); the first violated rule is reported as a *ValidationError
// carrying a Russian user-facing message. On success the payload is returned
// with the phone number in canonical E.164 form and each product resolved to
// its current catalog row.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
)

// DefaultPhoneRegion is applied to numbers written without a leading '+'.
const DefaultPhoneRegion = "RU"

const (
	maxNameRunes    = 50
	maxAddressRunes = 300
)

// Validation codes.
const (
	CodeRequired    = "required"
	CodeInvalidType = "invalid_type"
	CodeEmpty       = "empty"
	CodeNotFound    = "not_found"
	CodeMinValue    = "min_value"
	CodeTooLong     = "too_long"
	CodeInvalid     = "invalid"
)

// ProductLookup is the catalog access the validator needs.
type ProductLookup interface {
	ProductsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Product, error)
}

// ValidatedItem is an order line whose product exists.
type ValidatedItem struct {
	ProductID uint
	Quantity  int
	Price     decimal.Decimal
}

// ValidatedOrder is an order payload that passed every rule.
type ValidatedOrder struct {
	FirstName     string
	LastName      string
	PhoneNumber   string // E.164
	Address       string
	Comment       string
	PaymentMethod domain.PaymentMethod
	Items         []ValidatedItem
}

// OrderValidator checks raw order payloads.
type OrderValidator struct {
	DB       *gorm.DB
	Products ProductLookup
	// Region is the default phone region; empty means DefaultPhoneRegion.
	Region string
}

// Validate decodes raw and applies the order rules. Rule violations are
// returned as *ValidationError; any other error comes from the catalog lookup.
func (v *OrderValidator) Validate(ctx context.Context, raw []byte) (*ValidatedOrder, error) {
	tr := otel.Tracer("services/OrderValidator")
	ctx, span := tr.Start(ctx, "Validate",
		trace.WithAttributes(attribute.Int("payload.bytes", len(raw))),
	)
	defer span.End()

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return nil, invalid("", CodeInvalidType, "Некорректный JSON: ожидается объект.")
	}
	// Exactly one value; trailing whitespace is fine.
	if _, err := dec.Token(); err != io.EOF {
		return nil, invalid("", CodeInvalidType, "Некорректный JSON: ожидается объект.")
	}

	out := &ValidatedOrder{PaymentMethod: domain.PaymentUnspecified}

	items, err := v.validateProducts(ctx, payload)
	if err != nil {
		return nil, err
	}
	out.Items = items

	if out.FirstName, err = requiredString(payload, "firstname"); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(out.FirstName) > maxNameRunes {
		return nil, tooLong("firstname", maxNameRunes)
	}

	if out.LastName, err = optionalString(payload, "lastname"); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(out.LastName) > maxNameRunes {
		return nil, tooLong("lastname", maxNameRunes)
	}

	phone, err := requiredString(payload, "phonenumber")
	if err != nil {
		return nil, err
	}
	region := v.Region
	if region == "" {
		region = DefaultPhoneRegion
	}
	if out.PhoneNumber, err = NormalizePhone(phone, region); err != nil {
		return nil, err
	}

	if out.Address, err = requiredString(payload, "address"); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(out.Address) > maxAddressRunes {
		return nil, tooLong("address", maxAddressRunes)
	}

	if out.Comment, err = optionalString(payload, "comment"); err != nil {
		return nil, err
	}
	pm, err := optionalString(payload, "payment_method")
	if err != nil {
		return nil, err
	}
	if pm != "" {
		out.PaymentMethod = domain.PaymentMethod(strings.ToLower(pm))
		if !out.PaymentMethod.Valid() {
			return nil, invalid("payment_method", CodeInvalid,
				fmt.Sprintf("Значения %q нет среди допустимых вариантов.", pm))
		}
	}
	return out, nil
}

func (v *OrderValidator) validateProducts(ctx context.Context, payload map[string]any) ([]ValidatedItem, error) {
	rawProducts, ok := payload["products"]
	if !ok {
		return nil, invalid("products", CodeRequired, "Нет обязательного поле products.")
	}
	if rawProducts == nil {
		return nil, invalid("products", CodeEmpty, "Поле products не может быть пустым")
	}
	list, ok := rawProducts.([]any)
	if !ok {
		return nil, invalid("products", CodeInvalidType, "Поле products должно быть списком")
	}
	if len(list) == 0 {
		return nil, invalid("products", CodeEmpty, "Поле products не может быть пустым")
	}

	items := make([]ValidatedItem, 0, len(list))
	ids := make([]uint, 0, len(list))
	for i, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, invalid("products", CodeInvalidType,
				fmt.Sprintf("products[%d]: ожидается объект с полями product и quantity.", i))
		}
		rawID, ok := obj["product"]
		if !ok {
			return nil, invalid("products", CodeRequired,
				fmt.Sprintf("products[%d]: нет обязательного поля product.", i))
		}
		id, ok := asInt(rawID)
		if !ok || id <= 0 {
			return nil, invalid("products", CodeInvalidType,
				fmt.Sprintf("products[%d]: некорректный тип. Ожидалось значение первичного ключа.", i))
		}
		rawQty, ok := obj["quantity"]
		if !ok {
			return nil, invalid("products", CodeRequired,
				fmt.Sprintf("products[%d]: нет обязательного поля quantity.", i))
		}
		qty, ok := asInt(rawQty)
		if !ok {
			return nil, invalid("products", CodeInvalidType,
				fmt.Sprintf("products[%d]: требуется целочисленное значение quantity.", i))
		}
		if qty < 1 {
			return nil, invalid("products", CodeMinValue,
				fmt.Sprintf("products[%d]: убедитесь, что quantity больше либо равно 1.", i))
		}
		if qty > 1<<20 {
			return nil, invalid("products", CodeInvalid,
				fmt.Sprintf("products[%d]: слишком большое значение quantity.", i))
		}
		items = append(items, ValidatedItem{ProductID: uint(id), Quantity: int(qty)})
		ids = append(ids, uint(id))
	}

	found, err := v.Products.ProductsByIDs(ctx, v.DB, ids)
	if err != nil {
		return nil, err
	}
	prices := make(map[uint]decimal.Decimal, len(found))
	for _, p := range found {
		prices[p.ID] = p.Price
	}
	for i := range items {
		price, ok := prices[items[i].ProductID]
		if !ok {
			return nil, invalid("products", CodeNotFound,
				fmt.Sprintf("Недопустимый первичный ключ \"%d\" - объект не существует.", items[i].ProductID))
		}
		items[i].Price = price
	}
	return items, nil
}

// NormalizePhone converts raw to E.164. Eleven-digit numbers starting with
// 8 or 7 are read as Russian ("+7" + the remaining ten digits); anything
// else is parsed against region. The result must be a valid number.
func NormalizePhone(raw, region string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", invalid("phonenumber", CodeEmpty, "Поле phonenumber не может быть пустым.")
	}
	digits, ok := phoneDigits(s)
	if !ok {
		return "", invalidPhone()
	}
	if !strings.HasPrefix(s, "+") && len(digits) == 11 && (digits[0] == '8' || digits[0] == '7') {
		s = "+7" + digits[1:]
	}
	num, err := phonenumbers.Parse(s, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", invalidPhone()
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// phoneDigits strips the usual separators. Letters make the number invalid;
// the phone library would otherwise read them as keypad digits.
func phoneDigits(s string) (string, bool) {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ', r == '-', r == '(', r == ')', r == '.':
		default:
			return "", false
		}
	}
	return b.String(), b.Len() > 0
}

func invalidPhone() *ValidationError {
	return invalid("phonenumber", CodeInvalid, "Введен некорректный номер телефона.")
}

func invalid(field, code, msg string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: msg}
}

func tooLong(field string, n int) *ValidationError {
	return invalid(field, CodeTooLong,
		fmt.Sprintf("Убедитесь, что поле %s содержит не более %d символов.", field, n))
}

// requiredString returns the trimmed string at key or the matching rule error.
func requiredString(payload map[string]any, key string) (string, error) {
	raw, ok := payload[key]
	if !ok {
		return "", invalid(key, CodeRequired, fmt.Sprintf("Нет обязательного поля %s.", key))
	}
	if raw == nil {
		return "", invalid(key, CodeEmpty, fmt.Sprintf("Поле %s не может быть пустым.", key))
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalid(key, CodeInvalidType, fmt.Sprintf("Поле %s должно быть строкой.", key))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(key, CodeEmpty, fmt.Sprintf("Поле %s не может быть пустым.", key))
	}
	return s, nil
}

// optionalString returns "" when key is absent; present values must be strings.
func optionalString(payload map[string]any, key string) (string, error) {
	raw, ok := payload[key]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalid(key, CodeInvalidType, fmt.Sprintf("Поле %s должно быть строкой.", key))
	}
	return strings.TrimSpace(s), nil
}

// asInt accepts JSON integers and integer strings.
func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}
