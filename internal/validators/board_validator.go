package validators

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"syncBoard/internal/errs"
)

const (
	maxRoomIDLength    = 128
	maxBoardNameLength = 120
)

func ValidateRoomID(roomID string) error {
	if roomID == "" || len(roomID) > maxRoomIDLength || !utf8.ValidString(roomID) {
		return errs.ErrInvalidRoomID
	}
	for _, r := range roomID {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return errs.ErrInvalidRoomID
		}
	}
	return nil
}

func ValidateBoardName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxBoardNameLength {
		return errs.ErrInvalidBoardName
	}
	return nil
}

func ValidateBoardData(data []byte) error {
	if len(data) > 0 && !json.Valid(data) {
		return errs.ErrInvalidBoardData
	}
	return nil
}
