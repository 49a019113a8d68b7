package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amirrezam75/coinrace/pkg/logx"

	"go.uber.org/zap"
)

func encode(body any, w http.ResponseWriter) {
	response, err := json.Marshal(body)
	if err != nil {
		logx.Logger.Errorw(err.Error(), zap.String("desc", "could not marshal response"))
		return
	}

	_, err = w.Write(response)
	if err != nil {
		logx.Logger.Errorw(err.Error(), zap.String("desc", "could not write response"))
		return
	}
}
