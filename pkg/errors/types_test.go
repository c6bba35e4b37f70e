package errors

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	pathErr := func(err error) error {
		return &os.PathError{Op: "open", Path: "/root/x", Err: err}
	}

	tests := []struct {
		name string
		err  error
		exp  error
	}{
		{
			name: "Nil",
			err:  nil,
			exp:  nil,
		},
		{
			name: "NotExist",
			err:  pathErr(os.ErrNotExist),
			exp:  NotFoundError{Path: "/root/x"},
		},
		{
			name: "NotExistWithContext",
			err:  WithContext(pathErr(os.ErrNotExist), "read dir"),
			exp:  NotFoundError{Path: "/root/x"},
		},
		{
			name: "Permission",
			err:  pathErr(os.ErrPermission),
			exp:  PermissionError{Path: "/root/x", Err: pathErr(os.ErrPermission)},
		},
		{
			name: "Other",
			err:  New("disk full"),
			exp:  WithContext(New("disk full"), "/root/x"),
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.exp, Classify("/root/x", test.err))
		})
	}
}

func TestRootCause(t *testing.T) {
	root := NotFoundError{Path: "/src"}
	err := WithContext(WithContext(root, "list source"), "sync models")

	assert.Equal(t, "sync models: list source: \"/src\" does not exist", err.Error())
	assert.Equal(t, root, RootCause(err))

	var notFound NotFoundError
	assert.True(t, As(err, &notFound))
	assert.Equal(t, "/src", notFound.Path)
}

func TestWithContextNil(t *testing.T) {
	assert.NoError(t, WithContext(nil, "anything"))
}

func TestPartialFailure(t *testing.T) {
	err := PartialFailure{Op: "mirror", Failed: []string{"A", "B.txt"}}
	assert.Equal(t, "mirror: 2 failed: A, B.txt", err.Error())
}
