package indexedarray

import "errors"

var (
	ErrElementAlreadyExists                  = errors.New("indexedarray: element already exists")
	ErrElementDoesNotExist                   = errors.New("indexedarray: element does not exist")
	ErrElementNotFound                       = errors.New("indexedarray: low element not found")
	ErrIndexNotFound                         = errors.New("indexedarray: index not found")
	ErrLowElementGreaterOrEqualToNewElement  = errors.New("indexedarray: low element is greater or equal to new element")
	ErrNewElementGreaterOrEqualToNextElement = errors.New("indexedarray: new element is greater or equal to next element")
)
