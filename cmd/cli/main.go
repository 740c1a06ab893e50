package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"graphrag-platform/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("graphrag-platform cli 0.1.0")
	case "health":
		runHealth()
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runProc("./cmd/api")
		} else {
			fmt.Fprintf(os.Stderr, "Usage: graphrag server start\n")
			os.Exit(1)
		}
	case "worker":
		if len(args) > 0 && args[0] == "start" {
			runProc("./cmd/worker")
		} else {
			fmt.Fprintf(os.Stderr, "Usage: graphrag worker start\n")
			os.Exit(1)
		}
	case "query":
		runQuery(args)
	case "ingest":
		runIngest(args)
	case "review":
		runReview(args)
	case "entity":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: graphrag entity <entity_id>\n")
			os.Exit(1)
		}
		runEntity(args[0])
	case "merge":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: graphrag merge <keep_id> <merge_id> [reason]\n")
			os.Exit(1)
		}
		reason := ""
		if len(args) > 2 {
			reason = args[2]
		}
		runFeedback(func() (map[string]interface{}, error) { return postMerge(args[0], args[1], reason) })
	case "correct":
		if len(args) < 3 {
			fmt.Fprintf(os.Stderr, "Usage: graphrag correct <node_id> <field> <value>\n")
			os.Exit(1)
		}
		runFeedback(func() (map[string]interface{}, error) { return postCorrect(args[0], args[1], args[2]) })
	case "unlink":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: graphrag unlink <match_id>\n")
			os.Exit(1)
		}
		runFeedback(func() (map[string]interface{}, error) { return postUnlink(args[0]) })
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: graphrag <command> [args]")
	fmt.Println("  version                         - 显示版本")
	fmt.Println("  health                          - 健康检查")
	fmt.Println("  config                          - 显示配置概要")
	fmt.Println("  server start                    - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  worker start                    - 启动 Worker 服务（go run ./cmd/worker）")
	fmt.Println("  query <问题> [mode] [top_k]     - 检索问答（mode: local/global/hybrid）")
	fmt.Println("  ingest <chunks.json>            - 提交 chunk 文件等待消解")
	fmt.Println("  review list                     - 列出待复核的链接判定")
	fmt.Println("  review approve|reject <id>      - 裁决复核项")
	fmt.Println("  entity <entity_id>              - 查看实体及其一跳关系")
	fmt.Println("  merge <keep_id> <merge_id>      - 合并重复实体")
	fmt.Println("  correct <node_id> <field> <值>  - 修正实体字段")
	fmt.Println("  unlink <match_id>               - 撤销一条已接受的链接")
}

func runHealth() {
	out, err := getHealth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "健康检查失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if cfg != nil {
		fmt.Printf("api.port=%d\n", cfg.API.Port)
		fmt.Printf("api.host=%s\n", cfg.API.Host)
		fmt.Printf("storage.graph.type=%s\n", cfg.Storage.Graph.Type)
	}
}

func runProc(pkg string) {
	c := exec.Command("go", "run", pkg)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", pkg, err)
		os.Exit(1)
	}
}

func runQuery(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: graphrag query <问题> [mode] [top_k]\n")
		os.Exit(1)
	}
	mode := ""
	topK := 0
	if len(args) > 1 {
		mode = args[1]
	}
	if len(args) > 2 {
		if k, err := strconv.Atoi(args[2]); err == nil {
			topK = k
		}
	}
	out, err := postQuery(args[0], mode, topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "检索失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runIngest(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: graphrag ingest <chunks.json>\n")
		os.Exit(1)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取文件失败: %v\n", err)
		os.Exit(1)
	}
	var chunks []map[string]interface{}
	if err := json.Unmarshal(data, &chunks); err != nil {
		fmt.Fprintf(os.Stderr, "解析 chunks 失败（应为 JSON 数组）: %v\n", err)
		os.Exit(1)
	}
	out, err := postChunks(chunks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "提交失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runReview(args []string) {
	if len(args) < 1 || args[0] == "list" {
		out, err := listReviews()
		if err != nil {
			fmt.Fprintf(os.Stderr, "列出复核项失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(prettyJSON(out))
		return
	}
	action := args[0]
	if (action != "approve" && action != "reject") || len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: graphrag review list | approve <id> | reject <id>\n")
		os.Exit(1)
	}
	out, err := resolveReview(args[1], action)
	if err != nil {
		fmt.Fprintf(os.Stderr, "裁决失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runEntity(entityID string) {
	out, err := getEntity(entityID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询实体失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runFeedback(call func() (map[string]interface{}, error)) {
	out, err := call()
	if err != nil {
		fmt.Fprintf(os.Stderr, "反馈失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}
