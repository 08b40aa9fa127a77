// Provides platform-appropriate paths for jarvis.
//
// Paths follow XDG conventions on Linux and platform-native conventions on
// macOS and Windows. The program name is used as the subdirectory under each
// base path.
package paths
