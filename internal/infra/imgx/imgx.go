package imgx

import (
	"bytes"
	"errors"
	"image/jpeg"
)

// JPEGSize 只解析 JPEG 头部（SOFn）得到宽高，不解码像素。
//
// 用于在报告里标注每张预览图的尺寸；解析失败不影响提取本身，调用方可忽略错误。
func JPEGSize(b []byte) (width, height int, err error) {
	if len(b) < 4 {
		return 0, 0, errors.New("数据过短")
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, errors.New("图片尺寸无效")
	}
	return cfg.Width, cfg.Height, nil
}

// Orientation 描述预览图的横竖。
func Orientation(width, height int) string {
	switch {
	case width <= 0 || height <= 0:
		return ""
	case width > height:
		return "landscape"
	case width < height:
		return "portrait"
	default:
		return "square"
	}
}
