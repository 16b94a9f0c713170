package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/complymate/internal/config"
	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
	"github.com/zhouzirui/complymate/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: listen, speak, tts 或 voices")
	text := flag.String("text", "", "speak/tts 模式的输入文本")
	outputPath := flag.String("out", "", "tts 输出音频文件路径 (默认根据格式自动生成)")
	voice := flag.String("voice", "", "声音 ID，默认使用偏好声音")
	locale := flag.String("locale", cfg.Client.VoiceLocale, "偏好声音的语言前缀")
	duration := flag.Duration("duration", 10*time.Second, "listen 模式的录音时长")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	svc := speech.NewService(cfg.Speech.Model())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch *mode {
	case "listen":
		runListen(ctx, svc, *duration)
	case "speak":
		runSpeak(ctx, svc, *text, *voice, *locale, *timeout)
	case "tts":
		runTTS(ctx, cfg, *text, *voice, *outputPath, *timeout)
	case "voices":
		runVoices(svc, *locale)
	default:
		flag.Usage()
		log.Fatal("请通过 -mode=listen|speak|tts|voices 指定测试模式")
	}
}

func runListen(ctx context.Context, svc *speech.Service, duration time.Duration) {
	rec, err := svc.Recognizer()
	if err != nil {
		log.Fatalf("听写不可用: %v", err)
	}

	composer := speech.NewComposer()
	ended := make(chan struct{}, 1)
	session := speech.NewCaptureSession(rec, func(ev speechmodel.Event) {
		composer.Apply(ev)
		switch e := ev.(type) {
		case speechmodel.FinalCommitted:
			log.Printf("[final] %q", e.Text)
		case speechmodel.InterimUpdated:
			log.Printf("[interim] %q", e.Text)
		case speechmodel.RecognitionFailed:
			log.Printf("[error] %v", e.Err)
		case speechmodel.CaptureEnded:
			select {
			case ended <- struct{}{}:
			default:
			}
		}
	})
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		log.Fatalf("启动听写失败: %v", err)
	}
	log.Printf("开始听写，持续 %s，按 Ctrl+C 提前结束", duration)

	select {
	case <-time.After(duration):
	case <-ctx.Done():
	case <-ended:
	}
	_ = session.Stop()

	select {
	case <-ended:
	case <-time.After(5 * time.Second):
	}
	fmt.Printf("composed: %q\n", composer.ComposedValue())
}

func runSpeak(ctx context.Context, svc *speech.Service, text, voice, locale string, timeout time.Duration) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("speak 模式需要通过 -text 提供待朗读文本")
	}

	syn, err := svc.Synthesizer()
	if err != nil {
		log.Fatalf("朗读不可用: %v", err)
	}

	selector := speech.NewVoiceSelector(locale)
	selector.Update(syn.Voices())
	if voice != "" && !selector.Select(voice) {
		log.Printf("[WARN] 未知声音 %s，使用默认声音", voice)
	}

	finished := make(chan struct{}, 1)
	playback := speech.NewPlaybackController(syn,
		speech.WithVoiceSelector(selector),
		speech.WithPlaybackObserver(func(id string) {
			if id == "" {
				select {
				case finished <- struct{}{}:
				default:
				}
			}
		}),
	)

	log.Printf("开始朗读: voice=%s", selector.Selected().ID)
	if err := playback.Toggle("speechtester", text); err != nil {
		log.Fatalf("朗读失败: %v", err)
	}

	select {
	case <-finished:
		log.Println("朗读结束")
	case <-ctx.Done():
		playback.Stop()
	case <-time.After(timeout):
		playback.Stop()
		log.Println("[WARN] 朗读超时，已停止")
	}
}

func runTTS(ctx context.Context, cfg *config.Config, text, voice, outputPath string, timeout time.Duration) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("tts 模式需要通过 -text 提供待合成文本")
	}

	if outputPath == "" {
		outputPath = fmt.Sprintf("tts-output-%d.mp3", time.Now().Unix())
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := speech.NewVolcengineTTSClient(cfg.Speech.Model())
	resp, err := client.Synthesize(ctx, &speechmodel.TTSRequest{
		UtteranceID: fmt.Sprintf("manual-%d", time.Now().UnixNano()),
		Text:        speech.SpeakableText(text),
		Voice:       voice,
		Format:      "mp3",
	})
	if err != nil {
		log.Fatalf("TTS 调用失败: %v", err)
	}

	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}

	log.Printf("TTS 合成成功: 输出文件 %s, request=%s", outputPath, resp.RequestID)
}

func runVoices(svc *speech.Service, locale string) {
	voices := svc.Voices()
	preferred, ok := speech.PreferredVoice(voices, locale)
	for _, v := range voices {
		marker := " "
		if ok && v.ID == preferred.ID {
			marker = "*"
		}
		fmt.Printf("%s %-40s %-28s %s\n", marker, v.ID, v.Name, v.Locale)
	}
}
