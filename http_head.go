package izumo

// HeaderField is one ordered (name, value) pair from an HTTP/1 head.
// Names are not normalized by the parser (spec §3).
type HeaderField struct {
	Name  string
	Value string
}

// RequestHead is an HTTP/1 request-line plus header fields, parsed
// incrementally by Parse.
type RequestHead struct {
	Method  string
	Target  string
	Version string
	Fields  []HeaderField
}

// ResponseHead is an HTTP/1 status-line plus header fields, parsed
// incrementally by Parse.
type ResponseHead struct {
	Version string
	Code    int
	Reason  string
	Fields  []HeaderField
}

// Parse consumes a request head from the front of buf.
//
// On success, ok is true and remainder is the unconsumed suffix of buf; the
// receiver's fields are populated. If buf is a valid-so-far but incomplete
// prefix of a head, ok is false and err is nil — the caller should read
// more bytes and call Parse again with the longer buffer, from the same
// starting point (spec §4.5, §8 "parser monotonicity"). Any other error
// means buf violates the grammar; the caller must not retry with a longer
// buffer (spec §4.5 invariant 7), and the receiver's fields are left
// unmodified.
func (h *RequestHead) Parse(buf View) (remainder View, ok bool, err error) {
	b := buf.Bytes()

	method, target, version, next, err := parseRequestLine(b, 0)
	if err != nil {
		return View{}, false, incompleteToNil(err)
	}

	var fields []HeaderField
	next, err = parseFields(b, next, &fields)
	if err != nil {
		return View{}, false, incompleteToNil(err)
	}

	next, err = scanCRLF(b, next)
	if err != nil {
		return View{}, false, incompleteToNil(err)
	}

	h.Method, h.Target, h.Version, h.Fields = method, target, version, fields
	return buf.SubFrom(next), true, nil
}

// Parse consumes a response head from the front of buf. See RequestHead.Parse
// for the incomplete/error contract.
func (h *ResponseHead) Parse(buf View) (remainder View, ok bool, err error) {
	b := buf.Bytes()

	version, code, reason, next, err := parseResponseLine(b, 0)
	if err != nil {
		return View{}, false, incompleteToNil(err)
	}

	var fields []HeaderField
	next, err = parseFields(b, next, &fields)
	if err != nil {
		return View{}, false, incompleteToNil(err)
	}

	next, err = scanCRLF(b, next)
	if err != nil {
		return View{}, false, incompleteToNil(err)
	}

	h.Version, h.Code, h.Reason, h.Fields = version, code, reason, fields
	return buf.SubFrom(next), true, nil
}

// incompleteToNil maps the internal ErrIncomplete sentinel to a nil error
// (the exported Parse methods signal "need more bytes" via ok==false, not
// through the error return — see SPEC_FULL.md §7). Any other error (a
// grammar violation) passes through unchanged.
func incompleteToNil(err error) error {
	if err == ErrIncomplete {
		return nil
	}
	return err
}

// --- grammar primitives, grounded on original_source/src/http/HTTPHeaders.cc ---

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

const tcharExtra = "!#$%&'*+-.^_`|~"

func isTChar(c byte) bool {
	if isAlpha(c) || isDigit(c) {
		return true
	}
	for i := 0; i < len(tcharExtra); i++ {
		if tcharExtra[i] == c {
			return true
		}
	}
	return false
}

// isVCharObs accepts VCHAR plus any octet >= 0x20 except DEL (0x7F), per
// spec §4.5's vchar-obs.
func isVCharObs(c byte) bool {
	return !(c < 0x20 || c == 0x7f)
}

// scanToken scans 1*tchar starting at i and returns the index of the first
// non-tchar byte. Returns ErrIncomplete if every remaining byte in b is a
// tchar (the terminator has not arrived yet), and an HTTPParseError if the
// byte at i is not a tchar (empty token).
func scanToken(b []byte, i int) (int, error) {
	start := i
	for i < len(b) {
		if !isTChar(b[i]) {
			if i == start {
				return 0, newHTTPParseError("Invalid token")
			}
			return i, nil
		}
		i++
	}
	return 0, ErrIncomplete
}

// scanTarget scans a request-target: any run of non-space bytes. Grounded
// on parseTarget's deliberately permissive "XXX proper uri parsing" TODO —
// this layer does not validate target characters, only finds the
// terminating space.
func scanTarget(b []byte, i int) (int, error) {
	for i < len(b) {
		if b[i] == ' ' {
			return i, nil
		}
		i++
	}
	return 0, ErrIncomplete
}

const httpVersionLen = 8 // len("HTTP/1.x")

// scanVersion recognizes exactly "HTTP/1.0" or "HTTP/1.1" starting at i and
// returns the index just past it.
func scanVersion(b []byte, i int) (int, error) {
	if len(b)-i < httpVersionLen {
		return 0, ErrIncomplete
	}
	if string(b[i:i+7]) != "HTTP/1." {
		return 0, newHTTPParseError("Invalid http version")
	}
	if b[i+7] != '0' && b[i+7] != '1' {
		return 0, newHTTPParseError("Invalid http version")
	}
	return i + httpVersionLen, nil
}

// scanCRLF expects, at index i, either "\r\n", a bare "\n", or fails on a
// bare "\r". Returns the index just past the line terminator.
func scanCRLF(b []byte, i int) (int, error) {
	if i >= len(b) {
		return 0, ErrIncomplete
	}
	if b[i] == '\r' {
		i++
		if i >= len(b) {
			return 0, ErrIncomplete
		}
	}
	if b[i] != '\n' {
		return 0, newHTTPParseError("Invalid CRLF")
	}
	return i + 1, nil
}

// parseRequestLine parses "token SP target SP http-version CRLF" starting
// at i. The line terminator is checked immediately after the version (not
// one byte further), with scanCRLF bounds-checking before it reads; see
// DESIGN.md's Open Question #1 on the unchecked version bound in the
// original source's response-line parser.
func parseRequestLine(b []byte, i int) (method, target, version string, next int, err error) {
	methodEnd, err := scanToken(b, i)
	if err != nil {
		return "", "", "", 0, err
	}
	if b[methodEnd] != ' ' {
		return "", "", "", 0, newHTTPParseError("Invalid separator following method")
	}

	targetBegin := methodEnd + 1
	if targetBegin >= len(b) {
		return "", "", "", 0, ErrIncomplete
	}
	targetEnd, err := scanTarget(b, targetBegin)
	if err != nil {
		return "", "", "", 0, err
	}
	if b[targetEnd] != ' ' {
		return "", "", "", 0, newHTTPParseError("Invalid separator following target")
	}

	verBegin := targetEnd + 1
	verEnd, err := scanVersion(b, verBegin)
	if err != nil {
		return "", "", "", 0, err
	}

	next, err = scanCRLF(b, verEnd)
	if err != nil {
		return "", "", "", 0, err
	}

	return string(b[i:methodEnd]), string(b[targetBegin:targetEnd]), string(b[verBegin:verEnd]), next, nil
}

const statusCodeLen = 3

// parseResponseLine parses "http-version SP 3DIGIT SP reason CRLF"
// starting at i.
func parseResponseLine(b []byte, i int) (version string, code int, reason string, next int, err error) {
	verEnd, err := scanVersion(b, i)
	if err != nil {
		return "", 0, "", 0, err
	}
	if verEnd >= len(b) {
		return "", 0, "", 0, ErrIncomplete
	}
	if b[verEnd] != ' ' {
		return "", 0, "", 0, newHTTPParseError("Invalid separator after http version")
	}

	codeBegin := verEnd + 1
	if len(b)-codeBegin < statusCodeLen+1 {
		return "", 0, "", 0, ErrIncomplete
	}

	value := 0
	for k := 0; k < statusCodeLen; k++ {
		c := b[codeBegin+k]
		if !isDigit(c) {
			return "", 0, "", 0, newHTTPParseError("Invalid status code")
		}
		value = value*10 + int(c-'0')
	}

	codeEnd := codeBegin + statusCodeLen
	if b[codeEnd] != ' ' {
		return "", 0, "", 0, newHTTPParseError("Invalid separator after status code")
	}

	reasonBegin := codeEnd + 1
	reasonEnd := reasonBegin
	for {
		if reasonEnd >= len(b) {
			return "", 0, "", 0, ErrIncomplete
		}
		if b[reasonEnd] == '\r' || b[reasonEnd] == '\n' {
			break
		}
		if !isVCharObs(b[reasonEnd]) {
			return "", 0, "", 0, newHTTPParseError("Invalid character in reason")
		}
		reasonEnd++
	}

	next, err = scanCRLF(b, reasonEnd)
	if err != nil {
		return "", 0, "", 0, err
	}

	return string(b[i:verEnd]), value, string(b[reasonBegin:reasonEnd]), next, nil
}

// parseField parses one "token \":\" OWS field-value OWS CRLF" starting at i.
func parseField(b []byte, i int) (name, value string, next int, err error) {
	nameEnd, err := scanToken(b, i)
	if err != nil {
		return "", "", 0, err
	}
	if b[nameEnd] != ':' {
		return "", "", 0, newHTTPParseError("Invalid separator after field name")
	}

	valueBegin := nameEnd + 1
	for {
		if valueBegin >= len(b) {
			return "", "", 0, ErrIncomplete
		}
		if b[valueBegin] != ' ' {
			break
		}
		valueBegin++
	}

	valueEnd := valueBegin
	for {
		if valueEnd >= len(b) {
			return "", "", 0, ErrIncomplete
		}
		if b[valueEnd] == '\r' || b[valueEnd] == '\n' {
			break
		}
		if !isVCharObs(b[valueEnd]) {
			return "", "", 0, newHTTPParseError("Invalid character in field value")
		}
		valueEnd++
	}

	// Trailing OWS before CRLF is not stripped: valueEnd stops at the first
	// CR/LF, and SP is itself a vchar-obs byte (>= 0x20), so any trailing
	// spaces are kept as part of the value, as the original parser does.
	next, err = scanCRLF(b, valueEnd)
	if err != nil {
		return "", "", 0, err
	}

	return string(b[i:nameEnd]), string(b[valueBegin:valueEnd]), next, nil
}

// parseFields parses *( field-line CRLF ) starting at i, stopping (without
// consuming) at the CRLF/LF that terminates the header section.
func parseFields(b []byte, i int, fields *[]HeaderField) (int, error) {
	for {
		if i >= len(b) {
			return 0, ErrIncomplete
		}
		if b[i] == '\r' || b[i] == '\n' {
			return i, nil
		}
		name, value, next, err := parseField(b, i)
		if err != nil {
			return 0, err
		}
		*fields = append(*fields, HeaderField{Name: name, Value: value})
		i = next
	}
}
