package config

import (
	"RecruitTalkAPI/internal/constant"

	"github.com/go-playground/validator/v10"
)

func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("message_type", validateMessageType)
	return v
}

func validateMessageType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case constant.MessageTypeText, constant.MessageTypeImage, constant.MessageTypeVideo,
		constant.MessageTypeAudio, constant.MessageTypeFile:
		return true
	}
	return false
}
