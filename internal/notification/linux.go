package notification

import (
	"os/exec"

	"github.com/dooshek/kittbar/internal/logger"
)

type linuxNotifier struct{}

func (n *linuxNotifier) send(title, message string) error {
	logger.Debugf("Sending notification: %s - %s", title, message)
	go func() {
		if err := exec.Command("notify-send", "--app-name=kittbar", title, message).Run(); err != nil {
			logger.Errorf("Failed to send notification", err)
		}
	}()
	return nil
}
