package domain

// RoomType 房间类型
type RoomType string

const (
	RoomTypeOneToOne   RoomType = "OneToOne"
	RoomTypeSmallClass RoomType = "SmallClass"
	RoomTypeBigClass   RoomType = "BigClass"
)

// Valid 判断房间类型是否合法
func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeOneToOne, RoomTypeSmallClass, RoomTypeBigClass:
		return true
	}
	return false
}

// RoomStatus 房间 (以及周期房间中的单次课) 的状态
type RoomStatus string

const (
	RoomStatusIdle    RoomStatus = "Idle" // 未开始 (Pending)
	RoomStatusStarted RoomStatus = "Started"
	RoomStatusPaused  RoomStatus = "Paused"
	RoomStatusStopped RoomStatus = "Stopped"
)

// IsRunning 已开始或已暂停都算作进行中
func (s RoomStatus) IsRunning() bool {
	return s == RoomStatusStarted || s == RoomStatusPaused
}

// PeriodicStatus 周期房间整体的状态
type PeriodicStatus string

const (
	PeriodicStatusIdle    PeriodicStatus = "Idle"
	PeriodicStatusStarted PeriodicStatus = "Started"
	PeriodicStatusStopped PeriodicStatus = "Stopped"
)

// Region 白板/存储所在区域
type Region string

const (
	RegionCNHZ  Region = "cn-hz"
	RegionUSSV  Region = "us-sv"
	RegionSG    Region = "sg"
	RegionINMUM Region = "in-mum"
	RegionGBLON Region = "gb-lon"
)

// Valid 判断区域是否合法
func (r Region) Valid() bool {
	switch r {
	case RegionCNHZ, RegionUSSV, RegionSG, RegionINMUM, RegionGBLON:
		return true
	}
	return false
}

// DocType 房间课件类型
type DocType string

const (
	DocTypeDynamic DocType = "Dynamic"
	DocTypeStatic  DocType = "Static"
)

// FileResourceType 云盘文件的资源类型
type FileResourceType string

const (
	ResourceDirectory           FileResourceType = "Directory"
	ResourceNormal              FileResourceType = "NormalResources"
	ResourceWhiteboardConvert   FileResourceType = "WhiteboardConvert"
	ResourceWhiteboardProjector FileResourceType = "WhiteboardProjector"
	ResourceOnlineCourseware    FileResourceType = "OnlineCourseware"
	ResourceLocalCourseware     FileResourceType = "LocalCourseware"
)

// Convertible 是否支持白板转码
func (t FileResourceType) Convertible() bool {
	return t == ResourceWhiteboardConvert || t == ResourceWhiteboardProjector
}

// StoredInOSS 该类型的文件是否真正存放在对象存储中
func (t FileResourceType) StoredInOSS() bool {
	switch t {
	case ResourceNormal, ResourceWhiteboardConvert, ResourceWhiteboardProjector, ResourceLocalCourseware:
		return true
	}
	return false
}

// ConvertStep 转码进度
type ConvertStep string

const (
	ConvertStepNone       ConvertStep = "None"
	ConvertStepConverting ConvertStep = "Converting"
	ConvertStepDone       ConvertStep = "Done"
	ConvertStepFailed     ConvertStep = "Failed"
)
