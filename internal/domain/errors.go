package domain

import "github.com/pkg/errors"

// 错误分类，调用方使用 errors.Is 判断
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInfeasible       = errors.New("infeasible")
	ErrPriceUnavailable = errors.New("price unavailable")
)
