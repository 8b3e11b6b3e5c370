package errs

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrInvalidRequestBody = Error("invalid request body")
	ErrUserAlreadyExists  = Error("user already exists")
	ErrUserNotFound       = Error("user not found")
	ErrWrongPassword      = Error("wrong password")
	ErrInvalidToken       = Error("invalid token")
	ErrInvalidEmail       = Error("invalid email")
	ErrInvalidPassword    = Error("invalid password")
	ErrInvalidUser        = Error("invalid user")
	ErrInvalidParams      = Error("invalid params")
	ErrFirstName          = Error("first name is empty or too short")
	ErrLastName           = Error("last name is empty or too short")
	ErrUnauthorized       = Error("unauthorized")
	ErrJwtSecretMissing   = Error("jwt secret is not configured")

	ErrBoardNotFound       = Error("board not found")
	ErrBoardForbidden      = Error("board access forbidden")
	ErrBoardCreationFailed = Error("board creation failed")
	ErrInvalidBoardName    = Error("board name is empty or too long")
	ErrInvalidBoardData    = Error("board data is not valid json")
	ErrInvalidRoomID       = Error("invalid room id")
	ErrNoActiveSession     = Error("no active session for board")

	ErrArchiveDisabled = Error("snapshot archive is disabled")

	ErrMalformedFrame = Error("malformed frame")
	ErrUnknownEvent   = Error("unknown event")
	ErrNotRoomMember  = Error("not a room member")
	ErrUnknownTarget  = Error("unknown target connection")
	ErrRateLimited    = Error("rate limited")
	ErrHubStopped     = Error("relay hub is stopped")
)
