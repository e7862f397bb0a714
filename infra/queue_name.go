package infra

// QueueName 定義 RabbitMQ 隊列名稱的枚舉類型
type QueueName string

const (
	// QueueNameCdrRecords CDR 訊息隊列
	QueueNameCdrRecords QueueName = "cdr-records"
)

// String 實現 Stringer 接口，返回隊列名稱字符串
func (qn QueueName) String() string {
	return string(qn)
}
