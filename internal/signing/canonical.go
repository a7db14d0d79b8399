// Package signing derives the canonical request string and HMAC signature
// the partner gateway expects on every catalog and order call.
package signing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// nodeKind tags the variants of a parsed JSON value.
type nodeKind int

const (
	kindNull nodeKind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
)

// node is a typed JSON tree. Objects keep their members as a slice so the
// canonicalization visitor can sort them without round-tripping through maps;
// numbers keep their original literal so the canonical text matches what the
// partner computes on its side.
type node struct {
	kind    nodeKind
	boolVal bool
	numVal  json.Number
	strVal  string
	elems   []node
	fields  []field
}

type field struct {
	name  string
	value node
}

// Canonicalize builds the signing base string for a request. The method is
// upper-cased, query parameters are sorted as whole key=value tokens, the
// body (if any) is rewritten with object keys sorted at every depth while
// array order is preserved, and each component is percent-encoded before
// being joined with "&".
func Canonicalize(method, rawURL string, body []byte) (string, error) {
	parts := make([]string, 0, 3)
	parts = append(parts, strings.ToUpper(method))
	parts = append(parts, EncodeComponent(sortQuery(rawURL)))

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		n, err := parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("parse body: %w", err)
		}
		var sb strings.Builder
		writeCanonical(&sb, n)
		parts = append(parts, EncodeComponent(sb.String()))
	}
	return strings.Join(parts, "&"), nil
}

// sortQuery reorders the query string of rawURL by sorting whole "key=value"
// tokens lexicographically. A URL without parameters passes through bare.
func sortQuery(rawURL string) string {
	idx := strings.Index(rawURL, "?")
	if idx < 0 {
		return rawURL
	}
	base, query := rawURL[:idx], rawURL[idx+1:]
	if query == "" {
		return base
	}
	tokens := strings.Split(query, "&")
	sort.Strings(tokens)
	return base + "?" + strings.Join(tokens, "&")
}

const upperhex = "0123456789ABCDEF"

// EncodeComponent percent-encodes s as a URI component. Unlike net/url it
// also escapes ! ' ( ) * with uppercase hex, which the signing authority
// requires for the RFC 3986 "unreserved-but-risky" characters.
func EncodeComponent(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteByte(c)
		case c == '-' || c == '_' || c == '.' || c == '~':
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteByte(upperhex[c>>4])
			sb.WriteByte(upperhex[c&0x0f])
		}
	}
	return sb.String()
}

// parse decodes raw JSON into a node tree, preserving member order and
// number literals.
func parse(raw []byte) (node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	n, err := parseValue(dec)
	if err != nil {
		return node{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return node{}, fmt.Errorf("trailing data after JSON value")
	}
	return n, nil
}

func parseValue(dec *json.Decoder) (node, error) {
	tok, err := dec.Token()
	if err != nil {
		return node{}, fmt.Errorf("read token: %w", err)
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (node, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return node{}, fmt.Errorf("unexpected delimiter %q", v)
		}
	case string:
		return node{kind: kindString, strVal: v}, nil
	case json.Number:
		return node{kind: kindNumber, numVal: v}, nil
	case bool:
		return node{kind: kindBool, boolVal: v}, nil
	case nil:
		return node{kind: kindNull}, nil
	default:
		return node{}, fmt.Errorf("unexpected token %v", tok)
	}
}

func parseObject(dec *json.Decoder) (node, error) {
	n := node{kind: kindObject}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return node{}, fmt.Errorf("read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return node{}, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return node{}, err
		}
		n.fields = append(n.fields, field{name: key, value: val})
	}
	if _, err := dec.Token(); err != nil {
		return node{}, fmt.Errorf("read object close: %w", err)
	}
	return n, nil
}

func parseArray(dec *json.Decoder) (node, error) {
	n := node{kind: kindArray}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return node{}, err
		}
		n.elems = append(n.elems, val)
	}
	if _, err := dec.Token(); err != nil {
		return node{}, fmt.Errorf("read array close: %w", err)
	}
	return n, nil
}

// writeCanonical emits the compact canonical form of n. Object members are
// sorted by code-point order at every depth; array element order is kept.
func writeCanonical(sb *strings.Builder, n node) {
	switch n.kind {
	case kindNull:
		sb.WriteString("null")
	case kindBool:
		if n.boolVal {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case kindNumber:
		sb.WriteString(n.numVal.String())
	case kindString:
		writeJSONString(sb, n.strVal)
	case kindArray:
		sb.WriteByte('[')
		for i, el := range n.elems {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, el)
		}
		sb.WriteByte(']')
	case kindObject:
		members := make([]field, len(n.fields))
		copy(members, n.fields)
		sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })
		sb.WriteByte('{')
		for i, m := range members {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeJSONString(sb, m.name)
			sb.WriteByte(':')
			writeCanonical(sb, m.value)
		}
		sb.WriteByte('}')
	}
}

// writeJSONString emits s as a JSON string literal with the minimal escapes,
// matching what the partner's serializer produces.
func writeJSONString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}
