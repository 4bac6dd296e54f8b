// Package model 定义课表引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SlotKind 节次类型
type SlotKind string

const (
	SlotPeriod SlotKind = "period" // 上课节次
	SlotRecess SlotKind = "recess" // 课间休息
	SlotLunch  SlotKind = "lunch"  // 午休
)

// SubjectKind 课程类型
type SubjectKind string

const (
	SubjectTheory    SubjectKind = "TH"  // 理论课
	SubjectPractical SubjectKind = "PR"  // 实验课
	SubjectVAP       SubjectKind = "VAP" // 增值课程
	SubjectElective  SubjectKind = "OE"  // 开放选修
)

// RoomType 教室类型
type RoomType string

const (
	RoomClassroom RoomType = "CR"  // 普通教室
	RoomLab       RoomType = "LAB" // 实验室
)

// RoomTypeFor 返回课程类型所需的教室类型
func RoomTypeFor(kind SubjectKind) RoomType {
	if kind == SubjectPractical {
		return RoomLab
	}
	return RoomClassroom
}

// Batch 分组
type Batch string

const (
	BatchAll Batch = "ALL"
	BatchA1  Batch = "A1"
	BatchA2  Batch = "A2"
	BatchA3  Batch = "A3"
)

// IsSubBatch 是否为子分组
func (b Batch) IsSubBatch() bool {
	return b == BatchA1 || b == BatchA2 || b == BatchA3
}

// Overlaps 两个分组是否占用同一批学生
func (b Batch) Overlaps(other Batch) bool {
	return b == other || b == BatchAll || other == BatchAll
}

// DayAll 表示“全部工作日”的哨兵值
const DayAll = 0

// SlotRef 某天的某一节
type SlotRef struct {
	Day  int `json:"day" validate:"min=1,max=7"`
	Slot int `json:"slot" validate:"min=1"`
}
