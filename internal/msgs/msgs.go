package msgs

const (
	MsgOperationSuccessful     = "Operation successful"
	MsgOperationFailed         = "Operation failed"
	MsgUserCreatedSuccessfully = "User created successfully"
	MsgYouMustLoginFirst       = "You must login first"
	MsgBoardCreated            = "Board created successfully"
	MsgBoardSaved              = "Board saved successfully"
	MsgBoardDeleted            = "Board deleted successfully"
	MsgTooManyRequests         = "Too many requests"
)
