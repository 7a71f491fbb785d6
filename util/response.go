package util

import (
	libconstants "github.com/filswan/go-swan-lib/constants"
)

type BasicResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func CreateSuccessResponse(_data interface{}) BasicResponse {
	return BasicResponse{
		Status: libconstants.SWAN_API_STATUS_SUCCESS,
		Data:   _data,
		Code:   SuccessCode,
	}
}

func CreateErrorResponse(code int, errMsg ...string) BasicResponse {
	var msg string
	if len(errMsg) == 0 {
		msg = codeMsg[code]
	} else {
		msg = errMsg[0]
	}
	return BasicResponse{
		Status:  libconstants.SWAN_API_STATUS_FAIL,
		Code:    code,
		Message: msg,
	}
}

const (
	SuccessCode = 200
	JsonError   = 400

	StorageParamError = 7001
	StorageError      = 7002
	VerifyParamError  = 7003

	ComputeParamError = 8001
	ComputeError      = 8002
	ReceiptNotFound   = 8003
)

var codeMsg = map[int]string{
	JsonError: "An error occurred while converting to json",

	StorageParamError: "Invalid storage request",
	StorageError:      "An error occurred while storing the payload",
	VerifyParamError:  "Both uri and hash are required",

	ComputeParamError: "Invalid compute request",
	ComputeError:      "An error occurred while executing the function",
	ReceiptNotFound:   "Execution receipt not found",
}
