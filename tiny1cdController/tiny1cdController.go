package tiny1cdController

import "github.com/godbus/dbus"

const (
	dbusPath   = "/org/thermaline/tiny1cd"
	dbusDest   = "org.thermaline.tiny1cd"
	methodBase = "org.thermaline.tiny1cd"
)

func getDbusObj() (dbus.BusObject, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(dbusDest, dbusPath)
	return obj, nil
}

func TakeSnapshot() error {
	obj, err := getDbusObj()
	if err != nil {
		return err
	}
	return obj.Call(methodBase+".TakeSnapshot", 0).Store()
}

func TakeRawSnapshot() error {
	obj, err := getDbusObj()
	if err != nil {
		return err
	}
	return obj.Call(methodBase+".TakeRawSnapshot", 0).Store()
}

func PointTemp(x, y int) (float64, error) {
	obj, err := getDbusObj()
	if err != nil {
		return 0, err
	}
	var temp float64
	err = obj.Call(methodBase+".PointTemp", 0, int32(x), int32(y)).Store(&temp)
	return temp, err
}

func RectTemp(x, y, w, h int) (float64, float64, float64, error) {
	obj, err := getDbusObj()
	if err != nil {
		return 0, 0, 0, err
	}
	var max, min, avg float64
	err = obj.Call(methodBase+".RectTemp", 0,
		int32(x), int32(y), int32(w), int32(h)).Store(&max, &min, &avg)
	return max, min, avg, err
}

func LineTemp(x1, y1, x2, y2 int) (float64, float64, float64, error) {
	obj, err := getDbusObj()
	if err != nil {
		return 0, 0, 0, err
	}
	var max, min, avg float64
	err = obj.Call(methodBase+".LineTemp", 0,
		int32(x1), int32(y1), int32(x2), int32(y2)).Store(&max, &min, &avg)
	return max, min, avg, err
}

func CameraInfo() (string, int, int, int, error) {
	obj, err := getDbusObj()
	if err != nil {
		return "", 0, 0, 0, err
	}
	var name string
	var width, height, fps int32
	err = obj.Call(methodBase+".CameraInfo", 0).Store(&name, &width, &height, &fps)
	return name, int(width), int(height), int(fps), err
}
