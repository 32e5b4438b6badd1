package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemSpec is one cart entry requested on the command line.
type ItemSpec struct {
	PriceID  string
	Quantity int64
}

// SplitArgsQuoted splits a command string into arguments, treating quoted substrings as single arguments.
func SplitArgsQuoted(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	var quoteChar rune

	for _, r := range input {
		switch {
		case r == '"' || r == '\'':
			if !inQuotes {
				inQuotes = true
				quoteChar = r
			} else if r == quoteChar {
				inQuotes = false
				if current.Len() > 0 {
					args = append(args, current.String())
					current.Reset()
				}
			} else {
				current.WriteRune(r)
			}
		case (r == ' ' || r == ',') && !inQuotes:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	return args
}

// ParseItem parses PRICE[=QTY]. Quantity defaults to 1.
func ParseItem(text string) (ItemSpec, error) {
	text = strings.TrimSpace(text)
	priceID, qtyStr, hasQty := strings.Cut(text, "=")
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return ItemSpec{}, fmt.Errorf("invalid item '%s'. Usage: <price_id>[=<quantity>]", text)
	}

	item := ItemSpec{PriceID: priceID, Quantity: 1}
	if hasQty {
		qty, err := strconv.ParseInt(strings.TrimSpace(qtyStr), 10, 64)
		if err != nil {
			return ItemSpec{}, fmt.Errorf("invalid quantity '%s' for %s. Must be a positive number", qtyStr, priceID)
		}
		if qty < 1 {
			return ItemSpec{}, fmt.Errorf("quantity for %s must be greater than 0", priceID)
		}
		item.Quantity = qty
	}
	return item, nil
}

// ParseItems parses every item argument. An argument may itself hold several
// items separated by spaces or commas. Repeated price ids are merged.
func ParseItems(args []string) ([]ItemSpec, error) {
	var items []ItemSpec
	seen := map[string]int{}
	for _, arg := range args {
		for _, part := range SplitArgsQuoted(arg) {
			item, err := ParseItem(part)
			if err != nil {
				return nil, err
			}
			if i, ok := seen[item.PriceID]; ok {
				items[i].Quantity += item.Quantity
				continue
			}
			seen[item.PriceID] = len(items)
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}
	return items, nil
}
