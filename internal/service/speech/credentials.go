package speech

import (
	"fmt"
	"net/http"
	"strings"

	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

// resolveCredentials 返回规范化后的 AppID 与 AccessToken，缺失时返回 ErrCapabilityUnavailable。
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("%w: 火山引擎语音配置未初始化", ErrCapabilityUnavailable)
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}

	if appID == "" || token == "" {
		return "", "", fmt.Errorf("%w: 火山引擎语音配置缺少 AppID 或 AccessToken", ErrCapabilityUnavailable)
	}

	return appID, token, nil
}

// authHeader 构造 openspeech v3 鉴权请求头
func authHeader(appID, token, resourceID, connectID string) http.Header {
	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)
	return header
}
