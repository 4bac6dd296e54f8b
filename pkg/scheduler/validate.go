package scheduler

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
)

var validate = validator.New()

// ValidateConfig 检查配置完整性，任何问题都会中止生成
func ValidateConfig(cfg *model.Config) error {
	ve := &errors.ValidationErrors{}
	if cfg == nil {
		ve.Add("config", "配置不能为空")
		return ve.ToConfigurationError()
	}

	if err := validate.Struct(cfg); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				ve.Add(fe.Namespace(), fe.Tag())
			}
		} else {
			ve.Add("config", err.Error())
		}
	}

	slots := make(map[int]bool)
	teaching := 0
	for _, s := range cfg.Slots {
		if slots[s.Number] {
			ve.Add("slots", fmt.Sprintf("节次 %d 重复", s.Number))
		}
		slots[s.Number] = true
		if s.IsTeaching() {
			teaching++
		}
	}
	if len(cfg.Slots) > 0 && teaching == 0 {
		ve.Add("slots", "没有可上课的节次")
	}

	subjects := make(map[string]*model.Subject)
	for i := range cfg.Subjects {
		s := &cfg.Subjects[i]
		if subjects[s.ID] != nil {
			ve.Add("subjects", fmt.Sprintf("课程 %s 重复", s.ID))
		}
		subjects[s.ID] = s
	}

	teachers := make(map[string]bool)
	for _, t := range cfg.Teachers {
		if teachers[t.ID] {
			ve.Add("teachers", fmt.Sprintf("教师 %s 重复", t.ID))
		}
		teachers[t.ID] = true
		for _, u := range t.Unavailable {
			if u.Day > cfg.WorkingDays || !slots[u.Slot] {
				ve.Add("teachers", fmt.Sprintf("教师 %s 的不可用时段 (%d, %d) 不存在", t.ID, u.Day, u.Slot))
			}
		}
	}

	roomTypes := make(map[model.RoomType]int)
	rooms := make(map[string]bool)
	for _, r := range cfg.Rooms {
		if rooms[r.ID] {
			ve.Add("rooms", fmt.Sprintf("教室 %s 重复", r.ID))
		}
		rooms[r.ID] = true
		roomTypes[r.Type]++
	}

	divisions := make(map[string]*model.Division)
	for i := range cfg.Divisions {
		d := &cfg.Divisions[i]
		if divisions[d.ID] != nil {
			ve.Add("divisions", fmt.Sprintf("班级 %s 重复", d.ID))
		}
		divisions[d.ID] = d
	}

	for i, o := range cfg.Offerings {
		field := fmt.Sprintf("offerings[%d]", i)
		div := divisions[o.DivisionID]
		if div == nil {
			ve.Add(field, fmt.Sprintf("班级 %s 不存在", o.DivisionID))
		}
		subj := subjects[o.SubjectID]
		if subj == nil {
			ve.Add(field, fmt.Sprintf("课程 %s 不存在", o.SubjectID))
		}
		for _, id := range o.TeacherIDs {
			if !teachers[id] {
				ve.Add(field, fmt.Sprintf("教师 %s 不存在", id))
			}
		}
		if subj != nil && roomTypes[model.RoomTypeFor(subj.Kind)] == 0 {
			ve.Add(field, fmt.Sprintf("课程 %s 需要 %s 类型教室，但没有配置", subj.ID, model.RoomTypeFor(subj.Kind)))
		}
		if div == nil {
			continue
		}
		batch := o.BatchOrAll()
		if batch.IsSubBatch() && !hasBatch(div, batch) {
			ve.Add(field, fmt.Sprintf("班级 %s 没有分组 %s", div.ID, batch))
		}
		if subj != nil && subj.Kind == model.SubjectPractical && batch == model.BatchAll && div.HasSubBatches() {
			ve.Add(field, fmt.Sprintf("班级 %s 已划分实验分组，实验课 %s 必须指定分组", div.ID, subj.ID))
		}
	}

	if ve.HasErrors() {
		return ve.ToConfigurationError()
	}
	return nil
}

func hasBatch(d *model.Division, b model.Batch) bool {
	for _, x := range d.Batches {
		if x == b {
			return true
		}
	}
	return false
}
