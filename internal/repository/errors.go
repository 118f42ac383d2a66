package repository

import "errors"

var ErrNotFound = errors.New("not found")

// ユニーク制約違反（token重複など）
var ErrConflict = errors.New("conflict")
