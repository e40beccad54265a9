package service

import "errors"

var (
	ErrInvalidActivity = errors.New("活动参数无效")
	ErrInvalidBaby     = errors.New("宝宝档案参数无效")
	ErrBabyNotFound    = errors.New("宝宝档案不存在")
	ErrNotFound        = errors.New("记录不存在")
	ErrRangeTooLong    = errors.New("统计区间过长")
)
