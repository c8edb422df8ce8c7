package pattern

import (
	"strconv"
	"strings"

	"github.com/elchinoo/searchload/internal/errs"
)

// Parse turns one `<type/args>` token string (angle brackets included) into
// a Token. An unknown type keyword yields a KindExact token whose literal is
// the full bracketed payload, per spec.md §4.1 ("Unknown type keyword
// produces an exact token whose literal is the full original <...> payload").
// A known type with the wrong argument count fails with errs.KindBadPattern.
func Parse(raw string) (Token, error) {
	inner := raw
	if strings.HasPrefix(inner, "<") && strings.HasSuffix(inner, ">") {
		inner = inner[1 : len(inner)-1]
	}
	parts := strings.Split(inner, "/")
	typ := strings.ToLower(parts[0])
	args := parts[1:]

	switch typ {
	case "exact":
		if len(args) != 1 {
			return Token{}, badArity(raw, typ, 1, len(args))
		}
		return Token{Kind: KindExact, Raw: raw, Literal: args[0]}, nil

	case "increment":
		if len(args) != 1 {
			return Token{}, badArity(raw, typ, 1, len(args))
		}
		start, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "increment: bad start %q", args[0])
		}
		return Token{Kind: KindIncrement, Raw: raw, Start: start}, nil

	case "string":
		if len(args) != 2 {
			return Token{}, badArity(raw, typ, 2, len(args))
		}
		minL, maxL, err := parseIntPair(args[0], args[1])
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "string: bad bounds")
		}
		return Token{Kind: KindString, Raw: raw, MinLen: int(minL), MaxLen: int(maxL)}, nil

	case "text":
		if len(args) < 2 || len(args) > 3 {
			return Token{}, badArity(raw, typ, 2, len(args))
		}
		minW, maxW, err := parseIntPair(args[0], args[1])
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "text: bad bounds")
		}
		tok := Token{Kind: KindText, Raw: raw, MinWords: int(minW), MaxWords: int(maxW)}
		if len(args) == 3 {
			tok.WordlistPath = args[2]
		}
		return tok, nil

	case "int":
		if len(args) != 2 {
			return Token{}, badArity(raw, typ, 2, len(args))
		}
		minV, maxV, err := parseIntPair(args[0], args[1])
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "int: bad bounds")
		}
		return Token{Kind: KindInt, Raw: raw, Min: minV, Max: maxV}, nil

	case "bigint":
		if len(args) != 2 {
			return Token{}, badArity(raw, typ, 2, len(args))
		}
		minV, maxV, err := parseIntPair(args[0], args[1])
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "bigint: bad bounds")
		}
		return Token{Kind: KindBigInt, Raw: raw, Min: minV, Max: maxV}, nil

	case "float":
		if len(args) != 2 {
			return Token{}, badArity(raw, typ, 2, len(args))
		}
		minV, maxV, err := parseFloatPair(args[0], args[1])
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "float: bad bounds")
		}
		return Token{Kind: KindFloat, Raw: raw, FMin: minV, FMax: maxV}, nil

	case "boolean":
		if len(args) != 0 {
			return Token{}, badArity(raw, typ, 0, len(args))
		}
		return Token{Kind: KindBoolean, Raw: raw}, nil

	case "array":
		if len(args) != 4 {
			return Token{}, badArity(raw, typ, 4, len(args))
		}
		minSize, maxSize, err := parseIntPair(args[0], args[1])
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "array: bad size bounds")
		}
		minV, maxV, err := parseIntPair(args[2], args[3])
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "array: bad value bounds")
		}
		return Token{Kind: KindArray, Raw: raw, MinSize: int(minSize), MaxSize: int(maxSize), MinV: minV, MaxV: maxV}, nil

	case "array_float":
		if len(args) != 4 {
			return Token{}, badArity(raw, typ, 4, len(args))
		}
		minSize, maxSize, err := parseIntPair(args[0], args[1])
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "array_float: bad size bounds")
		}
		minV, maxV, err := parseFloatPair(args[2], args[3])
		if err != nil {
			return Token{}, errs.Wrapf(errs.KindBadPattern, err, "array_float: bad value bounds")
		}
		return Token{Kind: KindArrayFloat, Raw: raw, MinSize: int(minSize), MaxSize: int(maxSize), FMinV: minV, FMaxV: maxV}, nil

	default:
		// Unrecognized type: treat the whole bracketed content as a literal.
		return Token{Kind: KindExact, Raw: raw, Literal: raw}, nil
	}
}

func badArity(raw, typ string, want, got int) error {
	return errs.New(errs.KindBadPattern, "pattern "+typ+" in "+raw+": expected "+strconv.Itoa(want)+" args, got "+strconv.Itoa(got))
}

func parseIntPair(a, b string) (int64, int64, error) {
	x, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func parseFloatPair(a, b string) (float64, float64, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
