package browser

import (
	"encoding/json"
	"fmt"
)

// Op names a script operation from the fixed catalog below. The engine
// requests operations by name with a typed argument bag; it never builds
// script source itself.
type Op string

const (
	// OpProbeButton reports whether a button with the exact label exists
	// and whether it is disabled. Args: ButtonArgs.
	OpProbeButton Op = "probe_button"

	// OpClickButton clicks the button with the exact label, refusing
	// disabled controls. Args: ButtonArgs.
	OpClickButton Op = "click_button"

	// OpFillField assigns a value to a form field and dispatches a
	// bubbling input event so the page's reactive framework observes it.
	// Args: FieldArgs.
	OpFillField Op = "fill_field"

	// OpInsertEditorText focuses a rich-text editing surface and inserts
	// text through the editing command, then dispatches input and change
	// events. Direct property writes are invisible to the editor
	// framework backing the surface. Args: FieldArgs.
	OpInsertEditorText Op = "insert_editor_text"

	// OpReadVerification reports whether the success marker is present in
	// the page body. Args: VerifyArgs.
	OpReadVerification Op = "read_verification"
)

// ButtonArgs parameterize button probe and click operations.
type ButtonArgs struct {
	// Label must equal the button's trimmed visible text exactly.
	// Substring matching would also hit superset labels such as a
	// settings control whose label contains the target label.
	Label string `json:"label"`

	// Exclude drops candidates whose full text contains this qualifier.
	Exclude string `json:"exclude,omitempty"`
}

// FieldArgs parameterize fill operations.
type FieldArgs struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

// VerifyArgs parameterize the verification readback.
type VerifyArgs struct {
	Marker string `json:"marker"`
}

// ProbeData is the data payload of OpProbeButton.
type ProbeData struct {
	Found    bool `json:"found"`
	Disabled bool `json:"disabled"`
}

// VerifyData is the data payload of OpReadVerification.
type VerifyData struct {
	Confirmed bool `json:"confirmed"`
}

// findButton is shared by the probe and click operations: enumerate all
// buttons, keep those whose trimmed text equals the wanted label exactly,
// then drop any candidate carrying the exclude qualifier.
const findButton = `
  const want = (args.label || '').trim();
  const candidates = Array.from(document.querySelectorAll('button'))
    .filter((b) => b.textContent.trim() === want)
    .filter((b) => !args.exclude || !b.textContent.includes(args.exclude));
  const btn = candidates[0];
`

var scripts = map[Op]string{
	OpProbeButton: `(args) => {` + findButton + `
  if (!btn) {
    return { success: false, error: 'button not found', data: { found: false, disabled: false } };
  }
  return { success: true, data: { found: true, disabled: btn.disabled === true } };
}`,

	OpClickButton: `(args) => {` + findButton + `
  if (!btn) {
    return { success: false, error: 'button not found', data: { found: false, disabled: false } };
  }
  if (btn.disabled) {
    return { success: false, error: 'button is disabled', data: { found: true, disabled: true } };
  }
  btn.click();
  return { success: true, data: { found: true, disabled: false } };
}`,

	OpFillField: `(args) => {
  const input = document.querySelector(args.selector);
  if (!input) {
    return { success: false, error: 'input not found' };
  }
  input.value = args.value;
  input.dispatchEvent(new Event('input', { bubbles: true }));
  return { success: true };
}`,

	OpInsertEditorText: `(args) => {
  const editor = document.querySelector(args.selector);
  if (!editor) {
    return { success: false, error: 'editor not found' };
  }
  editor.focus();
  document.execCommand('insertText', false, args.value);
  editor.dispatchEvent(new Event('input', { bubbles: true }));
  editor.dispatchEvent(new Event('change', { bubbles: true }));
  return { success: true };
}`,

	OpReadVerification: `(args) => {
  const confirmed = document.body.textContent.includes(args.marker);
  return { success: true, data: { confirmed: confirmed } };
}`,
}

// Source returns the script source for op.
func Source(op Op) (string, error) {
	src, ok := scripts[op]
	if !ok {
		return "", fmt.Errorf("unknown script operation %q", op)
	}
	return src, nil
}

// Expression builds a self-invoking expression for channels that evaluate
// raw source. The argument bag is JSON-marshaled exactly once here, so
// free-form titles and content can never escape into the script context.
func Expression(op Op, args interface{}) (string, error) {
	src, err := Source(op)
	if err != nil {
		return "", err
	}
	argJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to marshal script args: %w", err)
	}
	return fmt.Sprintf("(%s)(%s)", src, argJSON), nil
}

// DecodeResult interprets a raw evaluation value as an EvalResult envelope.
// Empty and null values decode to (nil, nil): the page gave no answer.
func DecodeResult(raw []byte) (*EvalResult, error) {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "undefined" {
		return nil, nil
	}
	var res EvalResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to decode eval result: %w", err)
	}
	return &res, nil
}
