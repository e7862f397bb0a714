package model

// Cdr 通話/用量明細紀錄
type Cdr struct {
	ID          int64          `bson:"_id" json:"id" required:"false" doc:"由儲存層分配的紀錄ID"`
	Source      string         `bson:"source" json:"source" required:"false" doc:"來源號碼"`
	Destination string         `bson:"destination" json:"destination" required:"false" doc:"目的號碼或URL"`
	StartTime   *LocalDateTime `bson:"start_time,omitempty" json:"startTime,omitempty" doc:"開始時間 (ISO-8601 本地時間)"`
	ServiceType ServiceType    `bson:"service_type,omitempty" json:"serviceType,omitempty" enum:"VOICE,SMS,DATA" doc:"服務類型"`
	Usage       float64        `bson:"usage" json:"usage" required:"false" minimum:"0" doc:"用量，單位依服務類型而定"`
	FileName    string         `bson:"file_name" json:"fileName" required:"false" doc:"來源檔名"`
}

// Reportable reports whether the record carries the fields every aggregation view needs.
func (c *Cdr) Reportable() bool {
	return c.StartTime != nil && c.ServiceType != ""
}

// Clone returns a copy that shares no pointers with c.
func (c *Cdr) Clone() *Cdr {
	out := *c
	if c.StartTime != nil {
		st := *c.StartTime
		out.StartTime = &st
	}
	return &out
}
