package bridge

import (
	"encoding/json"
)

// MainButton is the host-rendered button controlled by embedded content.
type MainButton struct {
	Text            string `json:"text"`
	TextColor       string `json:"textColor"`
	Color           string `json:"color"`
	DisabledColor   string `json:"disabledColor,omitempty"`
	Visible         bool   `json:"isVisible"`
	Active          bool   `json:"isActive"`
	ProgressVisible bool   `json:"isProgressVisible"`
	HasOnClick      bool   `json:"hasOnClick"`
}

// ButtonOp is a main button mutation.
type ButtonOp int

const (
	ButtonShow ButtonOp = iota
	ButtonHide
	ButtonEnable
	ButtonDisable
	ButtonShowProgress
	ButtonHideProgress
	ButtonOnClick
	ButtonOffClick
	ButtonSetText
	ButtonSetTextColor
	ButtonSetColor
	ButtonSetDisabledColor
	ButtonSetVisible
	ButtonSetActive
)

// ButtonAction is one mutation. Value carries the string or bool operand of
// the Set ops.
type ButtonAction struct {
	Op    ButtonOp
	Value any
}

// ReduceMainButton applies a to b. Operands of the wrong type leave b
// unchanged.
func ReduceMainButton(b MainButton, a ButtonAction) MainButton {
	switch a.Op {
	case ButtonShow:
		b.Visible = true
	case ButtonHide:
		b.Visible = false
	case ButtonEnable:
		b.Active = true
	case ButtonDisable:
		b.Active = false
	case ButtonShowProgress:
		b.ProgressVisible = true
	case ButtonHideProgress:
		b.ProgressVisible = false
	case ButtonOnClick:
		b.HasOnClick = true
	case ButtonOffClick:
		b.HasOnClick = false
	case ButtonSetText:
		setString(&b.Text, a.Value)
	case ButtonSetTextColor:
		setString(&b.TextColor, a.Value)
	case ButtonSetColor:
		setString(&b.Color, a.Value)
	case ButtonSetDisabledColor:
		setString(&b.DisabledColor, a.Value)
	case ButtonSetVisible:
		setBool(&b.Visible, a.Value)
	case ButtonSetActive:
		setBool(&b.Active, a.Value)
	}

	return b
}

func setString(dst *string, v any) {
	if s, ok := v.(string); ok {
		*dst = s
	}
}

func setBool(dst *bool, v any) {
	if b, ok := v.(bool); ok {
		*dst = b
	}
}

var buttonVerbs = map[string]ButtonOp{
	"show":         ButtonShow,
	"hide":         ButtonHide,
	"enable":       ButtonEnable,
	"disable":      ButtonDisable,
	"showProgress": ButtonShowProgress,
	"hideProgress": ButtonHideProgress,
	"onClick":      ButtonOnClick,
	"offClick":     ButtonOffClick,
}

var buttonStringParams = map[string]ButtonOp{
	"text":          ButtonSetText,
	"textColor":     ButtonSetTextColor,
	"color":         ButtonSetColor,
	"disabledColor": ButtonSetDisabledColor,
}

var buttonBoolParams = map[string]ButtonOp{
	"isVisible": ButtonSetVisible,
	"isActive":  ButtonSetActive,
}

// buttonParamActions converts setParams arguments into actions, one per
// key. Keys that are unknown or carry the wrong type are returned in skipped.
func buttonParamActions(args map[string]json.RawMessage) (actions []ButtonAction, skipped []string) {
	for _, key := range sortedKeys(args) {
		raw := args[key]
		if isNull(raw) {
			skipped = append(skipped, key)
			continue
		}

		if op, ok := buttonStringParams[key]; ok {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				skipped = append(skipped, key)
				continue
			}
			actions = append(actions, ButtonAction{Op: op, Value: s})
			continue
		}

		if op, ok := buttonBoolParams[key]; ok {
			var b bool
			if err := json.Unmarshal(raw, &b); err != nil {
				skipped = append(skipped, key)
				continue
			}
			actions = append(actions, ButtonAction{Op: op, Value: b})
			continue
		}

		skipped = append(skipped, key)
	}

	return actions, skipped
}
