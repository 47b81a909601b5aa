package event

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyErrorType(t *testing.T) {
	req := require.New(t)
	req.Equal(ChatRoomDeletedType, ClassifyErrorType("CHAT_ROOM_DELETED"))
	req.Equal(FileTooLargeType, ClassifyErrorType("FILE_TOO_LARGE"))
	req.Equal(ServerErrorType, ClassifyErrorType("boom"))
	req.Equal(ServerErrorType, ClassifyErrorType(""))
}

func TestNewError_Unwraps(t *testing.T) {
	req := require.New(t)
	cause := fmt.Errorf("bad json")
	evt := NewError("u1", ParseErrorType, "message processing failed", cause)

	req.Equal(ErrorClass, evt.Class)
	req.Nil(evt.Message)
	req.ErrorIs(*evt.Error, cause)
	req.Contains(evt.Error.Error(), "PARSE_ERROR")
}
