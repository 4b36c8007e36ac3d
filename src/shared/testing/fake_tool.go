package testlib

import (
	"os"
	"path/filepath"

	. "github.com/onsi/gomega"
)

// FakeDemucsScript parses the demucs flags the invoker passes and writes four
// stems where demucs would.
const FakeDemucsScript = `#!/bin/sh
model=""
out=""
input=""
while [ $# -gt 0 ]; do
  case "$1" in
    -n) model="$2"; shift 2 ;;
    -o) out="$2"; shift 2 ;;
    -d|--two-stems) shift 2 ;;
    *) input="$1"; shift ;;
  esac
done
name=$(basename "$input")
base="${name%.*}"
dir="$out/$model/$base"
mkdir -p "$dir"
for stem in drums bass other vocals; do
  echo "$stem" > "$dir/$stem.wav"
done
echo "separated $input"
`

// WriteFakeTool writes an executable shell script and returns its path.
func WriteFakeTool(dir string, name string, script string) string {
	toolPath := filepath.Join(dir, name)
	ExpectWithOffset(1, os.WriteFile(toolPath, []byte(script), 0o755)).To(Succeed())
	return toolPath
}
