// suikaarena 多人合成大西瓜对战服务。
//
// 用法：
//
//	suikaarena serve             启动 HTTP + WebSocket 服务
//	suikaarena bot --name b1     启动一个机器人连接到服务
//
// 全局参数：
//
//	--config <path>  配置文件（默认依次查找 ./configs/suika.yaml 与内嵌配置）
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagConfig string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "suikaarena",
	Short:         "Multiplayer merge-ball arena server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
}
